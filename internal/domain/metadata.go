package domain

import (
	"strconv"
	"time"
)

// MarketMetadata is the enrichment record produced by one metadata fetch.
// Its identity equals the owning Market's identity (one-to-one). All content
// fields are optional because the source JSON may omit any of them; a record
// with only its identity set marks an attempted but unusable payload.
type MarketMetadata struct {
	ID          string
	MarketID    string
	Name        *string
	Description *string
	Image       *string
	UpdatedAt   time.Time
}

// MarketEvent is a nested sub-record extracted from a metadata payload's
// properties.events array. Append-only; never updated after creation.
type MarketEvent struct {
	ID          string
	MetadataID  string
	EventID     int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// MarketEventID derives the nested event identity from the parent metadata
// identity and the nested numeric id, unique per parent without a counter.
func MarketEventID(metadataID string, eventID int64) string {
	return metadataID + "-" + strconv.FormatInt(eventID, 10)
}
