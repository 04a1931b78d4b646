package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makaolabs/makao-indexer/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Upsert inserts or overwrites a market by identity (last-write-wins).
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, creator, owner, stake_token,
			engagement_deadline, resolution_deadline, creator_fee, prediction_count,
			ipfs_hash, total_amount, is_cancelled, is_resolved,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14
		)
		ON CONFLICT (id) DO UPDATE SET
			creator             = EXCLUDED.creator,
			owner               = EXCLUDED.owner,
			stake_token         = EXCLUDED.stake_token,
			engagement_deadline = EXCLUDED.engagement_deadline,
			resolution_deadline = EXCLUDED.resolution_deadline,
			creator_fee         = EXCLUDED.creator_fee,
			prediction_count    = EXCLUDED.prediction_count,
			ipfs_hash           = EXCLUDED.ipfs_hash,
			total_amount        = EXCLUDED.total_amount,
			is_cancelled        = EXCLUDED.is_cancelled,
			is_resolved         = EXCLUDED.is_resolved,
			updated_at          = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.Creator, m.Owner, m.StakeToken,
		bigText(m.EngagementDeadline), bigText(m.ResolutionDeadline),
		bigText(m.CreatorFee), bigText(m.PredictionCount),
		m.IPFSHash, bigText(m.TotalAmount), m.IsCancelled, m.IsResolved,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

const marketCols = `id, creator, owner, stake_token,
	engagement_deadline::text, resolution_deadline::text,
	creator_fee::text, prediction_count::text,
	ipfs_hash, total_amount::text, is_cancelled, is_resolved,
	created_at, updated_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var engagementDeadline, resolutionDeadline, creatorFee, predictionCount, totalAmount *string
	err := row.Scan(
		&m.ID, &m.Creator, &m.Owner, &m.StakeToken,
		&engagementDeadline, &resolutionDeadline,
		&creatorFee, &predictionCount,
		&m.IPFSHash, &totalAmount, &m.IsCancelled, &m.IsResolved,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}

	if m.EngagementDeadline, err = parseBig(engagementDeadline); err != nil {
		return domain.Market{}, err
	}
	if m.ResolutionDeadline, err = parseBig(resolutionDeadline); err != nil {
		return domain.Market{}, err
	}
	if m.CreatorFee, err = parseBig(creatorFee); err != nil {
		return domain.Market{}, err
	}
	if m.PredictionCount, err = parseBig(predictionCount); err != nil {
		return domain.Market{}, err
	}
	if m.TotalAmount, err = parseBig(totalAmount); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

// GetByID retrieves a market by contract address.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// List returns markets ordered by identity with pagination.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets ORDER BY id`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
