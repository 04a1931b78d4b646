package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/makaolabs/makao-indexer/internal/chain"
	"github.com/makaolabs/makao-indexer/internal/domain"
	"github.com/makaolabs/makao-indexer/internal/ipfs"
	"github.com/makaolabs/makao-indexer/internal/metadata"
)

func lowerHex(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// handleCreateInstance materializes a new market from the factory event. All
// contract fields are read through the revert-tolerant reader with an
// explicit fallback per field; stakeToken is the one critical field whose
// absence aborts the transition with nothing persisted.
func (i *Indexer) handleCreateInstance(ctx context.Context, ev chain.CreateInstance) error {
	id := lowerHex(ev.Instance)
	i.logger.Info("creating market", slog.String("market_id", id))

	m := domain.Market{
		ID:          id,
		Creator:     lowerHex(ev.TxSender),
		TotalAmount: new(big.Int),
		CreatedAt:   ev.Timestamp(),
		UpdatedAt:   ev.Timestamp(),
	}

	r := i.readers(ev.Instance)

	if owner, ok := r.TryOwner(ctx); ok {
		m.Owner = lowerHex(owner)
	} else {
		// Fallback: the transaction sender.
		i.logger.Warn("owner unreadable, falling back to tx sender",
			slog.String("market_id", id),
		)
		m.Owner = m.Creator
	}

	stakeToken, ok := r.TryStakeToken(ctx)
	if !ok {
		i.logger.Error("critical field stakeToken unreadable, aborting market creation",
			slog.String("market_id", id),
		)
		return nil
	}
	m.StakeToken = lowerHex(stakeToken)

	// Remaining fields are best-effort: unreadable means left unset.
	if d, ok := r.TryEngagementDeadline(ctx); ok {
		m.EngagementDeadline = d
	}
	if d, ok := r.TryResolutionDeadline(ctx); ok {
		m.ResolutionDeadline = d
	}
	if f, ok := r.TryCreatorFee(ctx); ok {
		m.CreatorFee = f
	}
	if n, ok := r.TryPredictionCount(ctx); ok {
		m.PredictionCount = n
	}
	if h, ok := r.TryMetadataHash(ctx); ok && h != "" {
		m.IPFSHash = h
	}

	if err := i.markets.Upsert(ctx, m); err != nil {
		return fmt.Errorf("indexer: upsert market %s: %w", id, err)
	}
	if err := i.applyGlobalStats(ctx, true, nil, ev.Timestamp()); err != nil {
		return err
	}

	if i.activator != nil {
		i.activator.Watch(ev.Instance)
	}
	if m.IPFSHash != "" {
		i.registerMetadataFetch(m.IPFSHash, id, ev.EventLog)
	}
	i.cacheMarket(ctx, m)

	i.logger.Info("market created",
		slog.String("market_id", id),
		slog.String("owner", m.Owner),
	)
	return nil
}

func (i *Indexer) handleEngageChallenge(ctx context.Context, ev chain.EngageChallenge) error {
	marketID := lowerHex(ev.Address)
	m, ok, err := i.loadMarket(ctx, marketID, "EngageChallenge")
	if err != nil || !ok {
		return err
	}

	e := domain.Engagement{
		ID:              domain.EngagementID(ev.TxHash.Hex(), ev.LogIndex),
		MarketID:        marketID,
		User:            lowerHex(ev.User),
		Amount:          new(big.Int).Set(ev.Amount),
		Timestamp:       ev.Timestamp(),
		TransactionHash: ev.TxHash.Hex(),
	}
	if err := i.engagements.Upsert(ctx, e); err != nil {
		return fmt.Errorf("indexer: upsert engagement %s: %w", e.ID, err)
	}

	m.TotalAmount = new(big.Int).Add(m.TotalAmount, ev.Amount)
	m.UpdatedAt = ev.Timestamp()
	if err := i.markets.Upsert(ctx, m); err != nil {
		return fmt.Errorf("indexer: upsert market %s: %w", marketID, err)
	}

	if err := i.applyGlobalStats(ctx, false, ev.Amount, ev.Timestamp()); err != nil {
		return err
	}
	i.cacheMarket(ctx, m)

	i.logger.Info("engagement recorded",
		slog.String("engagement_id", e.ID),
		slog.String("market_id", marketID),
	)
	return nil
}

// handleExitEvent decreases the market total. Out-of-order exits may drive
// the total negative; that is not validated here.
func (i *Indexer) handleExitEvent(ctx context.Context, ev chain.ExitEvent) error {
	marketID := lowerHex(ev.Address)
	m, ok, err := i.loadMarket(ctx, marketID, "ExitEvent")
	if err != nil || !ok {
		return err
	}

	m.TotalAmount = new(big.Int).Sub(m.TotalAmount, ev.Amount)
	m.UpdatedAt = ev.Timestamp()
	if err := i.markets.Upsert(ctx, m); err != nil {
		return fmt.Errorf("indexer: upsert market %s: %w", marketID, err)
	}

	if err := i.applyGlobalStats(ctx, false, new(big.Int).Neg(ev.Amount), ev.Timestamp()); err != nil {
		return err
	}
	i.cacheMarket(ctx, m)

	i.logger.Info("exit recorded",
		slog.String("market_id", marketID),
		slog.String("amount", ev.Amount.String()),
	)
	return nil
}

func (i *Indexer) handleEventCancelled(ctx context.Context, ev chain.EventCancelled) error {
	marketID := lowerHex(ev.Address)
	m, ok, err := i.loadMarket(ctx, marketID, "EventCancelled")
	if err != nil || !ok {
		return err
	}

	m.IsCancelled = true
	m.UpdatedAt = ev.Timestamp()
	if err := i.markets.Upsert(ctx, m); err != nil {
		return fmt.Errorf("indexer: upsert market %s: %w", marketID, err)
	}
	i.cacheMarket(ctx, m)

	i.logger.Info("market cancelled", slog.String("market_id", marketID))
	return nil
}

func (i *Indexer) handleResolveEvent(ctx context.Context, ev chain.ResolveEvent) error {
	marketID := lowerHex(ev.Address)
	m, ok, err := i.loadMarket(ctx, marketID, "ResolveEvent")
	if err != nil || !ok {
		return err
	}

	m.IsResolved = true
	m.UpdatedAt = ev.Timestamp()
	if err := i.markets.Upsert(ctx, m); err != nil {
		return fmt.Errorf("indexer: upsert market %s: %w", marketID, err)
	}
	i.cacheMarket(ctx, m)

	i.logger.Info("market resolved", slog.String("market_id", marketID))
	return nil
}

func (i *Indexer) handleMarketMetadataSet(ctx context.Context, ev chain.MarketMetadataSet) error {
	marketID := lowerHex(ev.Address)
	m, ok, err := i.loadMarket(ctx, marketID, "MarketMetadataSet")
	if err != nil || !ok {
		return err
	}

	m.IPFSHash = ev.IPFSHash
	m.UpdatedAt = ev.Timestamp()
	if err := i.markets.Upsert(ctx, m); err != nil {
		return fmt.Errorf("indexer: upsert market %s: %w", marketID, err)
	}

	if ev.IPFSHash != "" {
		i.registerMetadataFetch(ev.IPFSHash, marketID, ev.EventLog)
	}
	i.cacheMarket(ctx, m)

	i.logger.Info("metadata linked",
		slog.String("market_id", marketID),
		slog.String("cid", ev.IPFSHash),
	)
	return nil
}

// HandleMetadataContent processes one resolved dynamic fetch. The metadata
// record is persisted even when the payload fails the structural parse, with
// only its identity set, so the attempt stays observable and re-fetch storms
// are avoided. Nested event timestamps come from the triggering block time in
// the correlation context, never from fetch-resolution time.
func (i *Indexer) HandleMetadataContent(ctx context.Context, res ipfs.Result) error {
	marketID, ok := res.Context.GetString(ctxKeyMarketID)
	if !ok || marketID == "" {
		i.logger.Error("fetch result missing market correlation, dropping",
			slog.String("cid", res.CID),
		)
		return nil
	}
	blockTime, _ := res.Context.GetInt64(ctxKeyBlockTime)
	at := time.Unix(blockTime, 0).UTC()

	i.logger.Info("processing metadata content",
		slog.String("market_id", marketID),
		slog.String("cid", res.CID),
	)

	if i.archiver != nil {
		if err := i.archiver.Archive(ctx, res.CID, res.Data); err != nil {
			i.logger.Warn("payload archive failed",
				slog.String("cid", res.CID),
				slog.String("error", err.Error()),
			)
		}
	}

	md := domain.MarketMetadata{
		ID:        marketID,
		MarketID:  marketID,
		UpdatedAt: at,
	}

	parsed, ok := metadata.Parse(res.Data)
	if !ok {
		i.logger.Warn("unparsable metadata payload, persisting identity only",
			slog.String("market_id", marketID),
			slog.String("cid", res.CID),
		)
		if err := i.metadata.UpsertMetadata(ctx, md); err != nil {
			return fmt.Errorf("indexer: upsert metadata %s: %w", marketID, err)
		}
		return nil
	}

	md.Name = parsed.Name
	md.Description = parsed.Description
	md.Image = parsed.Image
	if err := i.metadata.UpsertMetadata(ctx, md); err != nil {
		return fmt.Errorf("indexer: upsert metadata %s: %w", marketID, err)
	}

	for _, pe := range parsed.Events {
		mev := domain.MarketEvent{
			ID:          domain.MarketEventID(marketID, pe.ID),
			MetadataID:  marketID,
			EventID:     pe.ID,
			Name:        pe.Name,
			Description: pe.Description,
			CreatedAt:   at,
		}
		if err := i.metadata.UpsertEvent(ctx, mev); err != nil {
			return fmt.Errorf("indexer: upsert market event %s: %w", mev.ID, err)
		}
	}

	i.logger.Info("metadata saved",
		slog.String("market_id", marketID),
		slog.Int("events", len(parsed.Events)),
	)
	return nil
}

// loadMarket fetches the handler's target. A missing market is logged and
// reported as ok=false — the event is dropped, never escalated. Store errors
// other than not-found propagate.
func (i *Indexer) loadMarket(ctx context.Context, id, event string) (domain.Market, bool, error) {
	m, err := i.markets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			i.logger.Error("market not found, dropping event",
				slog.String("market_id", id),
				slog.String("event", event),
			)
			return domain.Market{}, false, nil
		}
		return domain.Market{}, false, fmt.Errorf("indexer: load market %s: %w", id, err)
	}
	return m, true, nil
}

func (i *Indexer) registerMetadataFetch(cid, marketID string, lg chain.EventLog) {
	sctx := domain.NewSourceContext()
	sctx.SetString(ctxKeyMarketID, marketID)
	sctx.SetInt64(ctxKeyBlockTime, int64(lg.BlockTime))
	i.sources.Register(cid, sctx)
}

func (i *Indexer) cacheMarket(ctx context.Context, m domain.Market) {
	if i.cache == nil {
		return
	}
	if err := i.cache.Set(ctx, m); err != nil {
		i.logger.Warn("market cache refresh failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}
