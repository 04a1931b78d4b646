// Package indexer rebuilds the derived market view from the ordered chain
// event stream. Exactly one goroutine runs the handlers, so every repository
// access follows read-modify-upsert with no optimistic concurrency check;
// parallelizing this loop would require per-identity locking.
package indexer

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/makaolabs/makao-indexer/internal/chain"
	"github.com/makaolabs/makao-indexer/internal/domain"
	"github.com/makaolabs/makao-indexer/internal/ipfs"
)

// Correlation context keys carried across the fetch suspension boundary.
const (
	ctxKeyMarketID  = "marketId"
	ctxKeyBlockTime = "blockTime"
)

// ContractReader is the revert-tolerant accessor surface of one fixture
// contract. chain.FixtureReader implements it; tests substitute a stub.
type ContractReader interface {
	TryOwner(ctx context.Context) (common.Address, bool)
	TryStakeToken(ctx context.Context) (common.Address, bool)
	TryEngagementDeadline(ctx context.Context) (*big.Int, bool)
	TryResolutionDeadline(ctx context.Context) (*big.Int, bool)
	TryCreatorFee(ctx context.Context) (*big.Int, bool)
	TryPredictionCount(ctx context.Context) (*big.Int, bool)
	TryMetadataHash(ctx context.Context) (string, bool)
}

// ReaderFactory binds a ContractReader to a fixture address.
type ReaderFactory func(addr common.Address) ContractReader

// SourceRegistrar schedules a dynamic metadata fetch. ipfs.Manager
// implements it.
type SourceRegistrar interface {
	Register(cid string, sctx domain.SourceContext)
}

// TemplateActivator starts log ingestion for a newly created fixture.
// chain.LogSource implements it.
type TemplateActivator interface {
	Watch(addr common.Address)
}

// MarketCache mirrors upserted markets into a read cache. Optional.
type MarketCache interface {
	Set(ctx context.Context, m domain.Market) error
}

// PayloadArchiver persists raw fetched payloads for audit and replay.
// Optional.
type PayloadArchiver interface {
	Archive(ctx context.Context, cid string, data []byte) error
}

// Deps bundles everything the indexer needs. Activator, Cache, and Archiver
// may be nil.
type Deps struct {
	Markets     domain.MarketStore
	Engagements domain.EngagementStore
	Stats       domain.GlobalStatStore
	Metadata    domain.MetadataStore
	Readers     ReaderFactory
	Sources     SourceRegistrar
	Activator   TemplateActivator
	Cache       MarketCache
	Archiver    PayloadArchiver
	Logger      *slog.Logger
}

// Indexer routes decoded events and resolved fetches to their handlers.
type Indexer struct {
	markets     domain.MarketStore
	engagements domain.EngagementStore
	stats       domain.GlobalStatStore
	metadata    domain.MetadataStore
	readers     ReaderFactory
	sources     SourceRegistrar
	activator   TemplateActivator
	cache       MarketCache
	archiver    PayloadArchiver
	logger      *slog.Logger
}

// New creates an Indexer from its dependencies.
func New(d Deps) *Indexer {
	return &Indexer{
		markets:     d.Markets,
		engagements: d.Engagements,
		stats:       d.Stats,
		metadata:    d.Metadata,
		readers:     d.Readers,
		sources:     d.Sources,
		activator:   d.Activator,
		cache:       d.Cache,
		archiver:    d.Archiver,
		logger:      d.Logger.With(slog.String("component", "indexer")),
	}
}

// Run consumes chain events and fetch results until ctx is cancelled or the
// event channel closes. Handler failures are logged and never halt the loop;
// a prior event's failure must not block subsequent events.
func (i *Indexer) Run(ctx context.Context, events <-chan chain.Event, results <-chan ipfs.Result) error {
	i.logger.Info("indexer loop starting")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				i.logger.Info("event stream closed, indexer stopping")
				i.drainResults(ctx, results)
				return nil
			}
			if err := i.HandleEvent(ctx, ev); err != nil {
				lg := ev.Log()
				i.logger.Error("event handler failed",
					slog.Uint64("block", lg.BlockNumber),
					slog.Uint64("log_index", uint64(lg.LogIndex)),
					slog.String("error", err.Error()),
				)
			}
		case res, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			if err := i.HandleMetadataContent(ctx, res); err != nil {
				i.logger.Error("metadata content handler failed",
					slog.String("cid", res.CID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// drainResults processes fetch results already resolved when the event
// stream closes, so a clean shutdown does not discard completed fetches. It
// never waits for in-flight fetches.
func (i *Indexer) drainResults(ctx context.Context, results <-chan ipfs.Result) {
	for {
		select {
		case res, ok := <-results:
			if !ok {
				return
			}
			if err := i.HandleMetadataContent(ctx, res); err != nil {
				i.logger.Error("metadata content handler failed",
					slog.String("cid", res.CID),
					slog.String("error", err.Error()),
				)
			}
		default:
			return
		}
	}
}

// HandleEvent dispatches one decoded chain event to its handler.
func (i *Indexer) HandleEvent(ctx context.Context, ev chain.Event) error {
	switch e := ev.(type) {
	case chain.CreateInstance:
		return i.handleCreateInstance(ctx, e)
	case chain.EngageChallenge:
		return i.handleEngageChallenge(ctx, e)
	case chain.ExitEvent:
		return i.handleExitEvent(ctx, e)
	case chain.EventCancelled:
		return i.handleEventCancelled(ctx, e)
	case chain.ResolveEvent:
		return i.handleResolveEvent(ctx, e)
	case chain.MarketMetadataSet:
		return i.handleMarketMetadataSet(ctx, e)
	default:
		i.logger.Warn("unroutable event kind dropped")
		return nil
	}
}
