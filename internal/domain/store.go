package domain

import "context"

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists materialized markets, keyed by contract address.
// Upsert is create-or-overwrite by identity; the pipeline never merges.
type MarketStore interface {
	Upsert(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// EngagementStore persists append-only engagement records.
type EngagementStore interface {
	Upsert(ctx context.Context, e Engagement) error
	GetByID(ctx context.Context, id string) (Engagement, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Engagement, error)
}

// GlobalStatStore persists the singleton aggregate.
type GlobalStatStore interface {
	Upsert(ctx context.Context, s GlobalStat) error
	Get(ctx context.Context) (GlobalStat, error)
}

// MetadataStore persists metadata records and their nested events.
type MetadataStore interface {
	UpsertMetadata(ctx context.Context, md MarketMetadata) error
	GetMetadata(ctx context.Context, id string) (MarketMetadata, error)
	UpsertEvent(ctx context.Context, ev MarketEvent) error
	ListEvents(ctx context.Context, metadataID string) ([]MarketEvent, error)
}
