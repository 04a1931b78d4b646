package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makaolabs/makao-indexer/internal/domain"
)

// MetadataStore implements domain.MetadataStore using PostgreSQL.
type MetadataStore struct {
	pool *pgxpool.Pool
}

// NewMetadataStore creates a MetadataStore backed by the given pool.
func NewMetadataStore(pool *pgxpool.Pool) *MetadataStore {
	return &MetadataStore{pool: pool}
}

// UpsertMetadata inserts or overwrites a metadata record. A record with all
// content columns NULL marks a fetched-but-unparsable payload.
func (s *MetadataStore) UpsertMetadata(ctx context.Context, md domain.MarketMetadata) error {
	const query = `
		INSERT INTO market_metadata (id, market_id, name, description, image, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			market_id   = EXCLUDED.market_id,
			name        = EXCLUDED.name,
			description = EXCLUDED.description,
			image       = EXCLUDED.image,
			updated_at  = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		md.ID, md.MarketID, md.Name, md.Description, md.Image, md.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert metadata %s: %w", md.ID, err)
	}
	return nil
}

// GetMetadata retrieves a metadata record by its (market) identity.
func (s *MetadataStore) GetMetadata(ctx context.Context, id string) (domain.MarketMetadata, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, market_id, name, description, image, updated_at
		FROM market_metadata WHERE id = $1`, id)

	var md domain.MarketMetadata
	err := row.Scan(&md.ID, &md.MarketID, &md.Name, &md.Description, &md.Image, &md.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MarketMetadata{}, domain.ErrNotFound
		}
		return domain.MarketMetadata{}, fmt.Errorf("postgres: get metadata %s: %w", id, err)
	}
	return md, nil
}

// UpsertEvent inserts or overwrites a nested market event. Re-registration of
// the same content address collides here and rewrites rather than duplicates.
func (s *MetadataStore) UpsertEvent(ctx context.Context, ev domain.MarketEvent) error {
	const query = `
		INSERT INTO market_events (id, metadata_id, event_id, name, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			metadata_id = EXCLUDED.metadata_id,
			event_id    = EXCLUDED.event_id,
			name        = EXCLUDED.name,
			description = EXCLUDED.description,
			created_at  = EXCLUDED.created_at`

	_, err := s.pool.Exec(ctx, query,
		ev.ID, ev.MetadataID, ev.EventID, ev.Name, ev.Description, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market event %s: %w", ev.ID, err)
	}
	return nil
}

// ListEvents returns the nested events under one metadata record.
func (s *MetadataStore) ListEvents(ctx context.Context, metadataID string) ([]domain.MarketEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, metadata_id, event_id, name, description, created_at
		FROM market_events WHERE metadata_id = $1 ORDER BY event_id`, metadataID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list market events for %s: %w", metadataID, err)
	}
	defer rows.Close()

	var out []domain.MarketEvent
	for rows.Next() {
		var ev domain.MarketEvent
		if err := rows.Scan(&ev.ID, &ev.MetadataID, &ev.EventID, &ev.Name, &ev.Description, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan market event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list market events rows: %w", err)
	}
	return out, nil
}
