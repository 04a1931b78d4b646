package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makaolabs/makao-indexer/internal/domain"
)

// GlobalStatStore implements domain.GlobalStatStore using PostgreSQL.
type GlobalStatStore struct {
	pool *pgxpool.Pool
}

// NewGlobalStatStore creates a GlobalStatStore backed by the given pool.
func NewGlobalStatStore(pool *pgxpool.Pool) *GlobalStatStore {
	return &GlobalStatStore{pool: pool}
}

// Upsert overwrites the singleton aggregate row.
func (s *GlobalStatStore) Upsert(ctx context.Context, stat domain.GlobalStat) error {
	const query = `
		INSERT INTO global_stats (id, total_markets, total_volume, total_users, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			total_markets = EXCLUDED.total_markets,
			total_volume  = EXCLUDED.total_volume,
			total_users   = EXCLUDED.total_users,
			last_updated  = EXCLUDED.last_updated`

	id := stat.ID
	if id == "" {
		id = domain.GlobalStatID
	}
	_, err := s.pool.Exec(ctx, query,
		id, stat.TotalMarkets, bigText(stat.TotalVolume), stat.TotalUsers, stat.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert global stats: %w", err)
	}
	return nil
}

// Get loads the singleton aggregate. domain.ErrNotFound before the first
// mutation.
func (s *GlobalStatStore) Get(ctx context.Context) (domain.GlobalStat, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, total_markets, total_volume::text, total_users, last_updated
		FROM global_stats WHERE id = $1`, domain.GlobalStatID)

	var stat domain.GlobalStat
	var volume *string
	err := row.Scan(&stat.ID, &stat.TotalMarkets, &volume, &stat.TotalUsers, &stat.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.GlobalStat{}, domain.ErrNotFound
		}
		return domain.GlobalStat{}, fmt.Errorf("postgres: get global stats: %w", err)
	}
	if stat.TotalVolume, err = parseBig(volume); err != nil {
		return domain.GlobalStat{}, err
	}
	return stat, nil
}
