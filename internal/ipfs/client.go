// Package ipfs retrieves content-addressed metadata payloads through an HTTP
// gateway and schedules dynamic fetches for the indexer.
package ipfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/makaolabs/makao-indexer/internal/domain"
)

// maxPayloadBytes caps how much of a gateway response is read. Metadata
// documents are small; anything past this is truncated garbage.
const maxPayloadBytes = 4 << 20

// Client fetches raw bytes for a content address from an IPFS HTTP gateway.
type Client struct {
	gatewayURL string
	httpClient *http.Client
}

// NewClient creates a gateway client, e.g. for "https://ipfs.io".
func NewClient(gatewayURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the payload for cid. A non-200 response maps to
// domain.ErrUnavailable so callers can treat "not there yet" uniformly.
func (c *Client) Fetch(ctx context.Context, cid string) ([]byte, error) {
	url := c.gatewayURL + "/ipfs/" + cid

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ipfs: build request for %s: %w", cid, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ipfs: fetch %s: %w", cid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ipfs: fetch %s: status %d: %w", cid, resp.StatusCode, domain.ErrUnavailable)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("ipfs: read %s: %w", cid, err)
	}
	return data, nil
}
