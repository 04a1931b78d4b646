package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/makaolabs/makao-indexer/internal/domain"
)

// applyGlobalStats is the single mutation entry point for the GlobalStat
// singleton; no other code writes it. volumeDelta may be nil (no volume
// change) or negative (exit).
func (i *Indexer) applyGlobalStats(ctx context.Context, isNewMarket bool, volumeDelta *big.Int, ts time.Time) error {
	s, err := i.stats.Get(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("indexer: load global stats: %w", err)
		}
		s = domain.NewGlobalStat()
	}

	if isNewMarket {
		s.TotalMarkets++
	}
	if volumeDelta != nil {
		s.TotalVolume = new(big.Int).Add(s.TotalVolume, volumeDelta)
	}
	s.LastUpdated = ts

	if err := i.stats.Upsert(ctx, s); err != nil {
		return fmt.Errorf("indexer: upsert global stats: %w", err)
	}
	return nil
}
