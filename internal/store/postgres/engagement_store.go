package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makaolabs/makao-indexer/internal/domain"
)

// EngagementStore implements domain.EngagementStore using PostgreSQL.
type EngagementStore struct {
	pool *pgxpool.Pool
}

// NewEngagementStore creates an EngagementStore backed by the given pool.
func NewEngagementStore(pool *pgxpool.Pool) *EngagementStore {
	return &EngagementStore{pool: pool}
}

// Upsert inserts or overwrites an engagement. Replays of the same event
// collide on the composite id and rewrite identical values.
func (s *EngagementStore) Upsert(ctx context.Context, e domain.Engagement) error {
	const query = `
		INSERT INTO engagements (id, market_id, "user", amount, ts, transaction_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			market_id        = EXCLUDED.market_id,
			"user"           = EXCLUDED."user",
			amount           = EXCLUDED.amount,
			ts               = EXCLUDED.ts,
			transaction_hash = EXCLUDED.transaction_hash`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.MarketID, e.User, bigText(e.Amount), e.Timestamp, e.TransactionHash,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert engagement %s: %w", e.ID, err)
	}
	return nil
}

const engagementCols = `id, market_id, "user", amount::text, ts, transaction_hash`

func scanEngagement(row pgx.Row) (domain.Engagement, error) {
	var e domain.Engagement
	var amount *string
	err := row.Scan(&e.ID, &e.MarketID, &e.User, &amount, &e.Timestamp, &e.TransactionHash)
	if err != nil {
		return domain.Engagement{}, err
	}
	if e.Amount, err = parseBig(amount); err != nil {
		return domain.Engagement{}, err
	}
	return e, nil
}

// GetByID retrieves an engagement by its composite identity.
func (s *EngagementStore) GetByID(ctx context.Context, id string) (domain.Engagement, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+engagementCols+` FROM engagements WHERE id = $1`, id)
	e, err := scanEngagement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Engagement{}, domain.ErrNotFound
		}
		return domain.Engagement{}, fmt.Errorf("postgres: get engagement %s: %w", id, err)
	}
	return e, nil
}

// ListByMarket returns a market's engagements in event order.
func (s *EngagementStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Engagement, error) {
	query := `SELECT ` + engagementCols + ` FROM engagements WHERE market_id = $1 ORDER BY ts, id`
	args := []any{marketID}
	argIdx := 2

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
		return nil, fmt.Errorf("postgres: list engagements for %s: %w", marketID, err)
	}
	defer rows.Close()

	var out []domain.Engagement
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan engagement: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list engagements rows: %w", err)
	}
	return out, nil
}
