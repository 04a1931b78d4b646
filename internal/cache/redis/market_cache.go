package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/makaolabs/makao-indexer/internal/domain"
)

const marketTTL = 10 * time.Minute

// MarketCache is a read-through cache of materialized markets, refreshed by
// the indexer after every market upsert.
//
// Key schema: makao:market:{id} holds the JSON-serialized record.
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func marketKey(id string) string { return "makao:market:" + id }

// cachedMarket is the wire shape; big integers travel as decimal strings.
type cachedMarket struct {
	ID                 string  `json:"id"`
	Creator            string  `json:"creator"`
	Owner              string  `json:"owner"`
	StakeToken         string  `json:"stake_token"`
	EngagementDeadline *string `json:"engagement_deadline,omitempty"`
	ResolutionDeadline *string `json:"resolution_deadline,omitempty"`
	CreatorFee         *string `json:"creator_fee,omitempty"`
	PredictionCount    *string `json:"prediction_count,omitempty"`
	IPFSHash           string  `json:"ipfs_hash,omitempty"`
	TotalAmount        string  `json:"total_amount"`
	IsCancelled        bool    `json:"is_cancelled"`
	IsResolved         bool    `json:"is_resolved"`
	CreatedAt          int64   `json:"created_at"`
	UpdatedAt          int64   `json:"updated_at"`
}

// Set stores a market with a TTL.
func (mc *MarketCache) Set(ctx context.Context, m domain.Market) error {
	data, err := json.Marshal(toCached(m))
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", m.ID, err)
	}
	if err := mc.rdb.Set(ctx, marketKey(m.ID), data, marketTTL).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", m.ID, err)
	}
	return nil
}

// Get retrieves a market by identity. domain.ErrNotFound on a miss.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	data, err := mc.rdb.Get(ctx, marketKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var cm cachedMarket
	if err := json.Unmarshal(data, &cm); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return fromCached(cm)
}

// Invalidate removes a market from the cache.
func (mc *MarketCache) Invalidate(ctx context.Context, id string) error {
	if err := mc.rdb.Del(ctx, marketKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}

func toCached(m domain.Market) cachedMarket {
	cm := cachedMarket{
		ID:          m.ID,
		Creator:     m.Creator,
		Owner:       m.Owner,
		StakeToken:  m.StakeToken,
		IPFSHash:    m.IPFSHash,
		TotalAmount: "0",
		IsCancelled: m.IsCancelled,
		IsResolved:  m.IsResolved,
		CreatedAt:   m.CreatedAt.Unix(),
		UpdatedAt:   m.UpdatedAt.Unix(),
	}
	if m.TotalAmount != nil {
		cm.TotalAmount = m.TotalAmount.String()
	}
	cm.EngagementDeadline = bigPtr(m.EngagementDeadline)
	cm.ResolutionDeadline = bigPtr(m.ResolutionDeadline)
	cm.CreatorFee = bigPtr(m.CreatorFee)
	cm.PredictionCount = bigPtr(m.PredictionCount)
	return cm
}

func fromCached(cm cachedMarket) (domain.Market, error) {
	m := domain.Market{
		ID:          cm.ID,
		Creator:     cm.Creator,
		Owner:       cm.Owner,
		StakeToken:  cm.StakeToken,
		IPFSHash:    cm.IPFSHash,
		IsCancelled: cm.IsCancelled,
		IsResolved:  cm.IsResolved,
		CreatedAt:   time.Unix(cm.CreatedAt, 0).UTC(),
		UpdatedAt:   time.Unix(cm.UpdatedAt, 0).UTC(),
	}

	var err error
	if m.TotalAmount, err = parseBigStr(&cm.TotalAmount); err != nil {
		return domain.Market{}, err
	}
	if m.EngagementDeadline, err = parseBigStr(cm.EngagementDeadline); err != nil {
		return domain.Market{}, err
	}
	if m.ResolutionDeadline, err = parseBigStr(cm.ResolutionDeadline); err != nil {
		return domain.Market{}, err
	}
	if m.CreatorFee, err = parseBigStr(cm.CreatorFee); err != nil {
		return domain.Market{}, err
	}
	if m.PredictionCount, err = parseBigStr(cm.PredictionCount); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}
