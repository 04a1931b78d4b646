package s3blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver persists raw metadata payloads keyed by content address, so
// ingestion runs can be audited and replayed without re-fetching from the
// gateway. Content addressing makes the write idempotent.
type Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewArchiver creates an Archiver writing under the given key prefix
// (e.g. "metadata").
func NewArchiver(c *Client, prefix string) *Archiver {
	if prefix == "" {
		prefix = "metadata"
	}
	return &Archiver{
		client: c.S3(),
		bucket: c.Bucket(),
		prefix: prefix,
	}
}

// Archive uploads one payload as {prefix}/{cid}.json.
func (a *Archiver) Archive(ctx context.Context, cid string, data []byte) error {
	key := a.prefix + "/" + cid + ".json"

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3blob: archive %s: %w", key, err)
	}
	return nil
}
