package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend is the narrow slice of an Ethereum RPC client the log source needs.
// *ethclient.Client satisfies it.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

// SourceConfig holds polling parameters for the log source.
type SourceConfig struct {
	Factory      common.Address
	StartBlock   uint64
	ChainID      *big.Int
	PollInterval time.Duration
	BatchBlocks  uint64
	BufferSize   int
}

// LogSource polls the chain for factory and fixture logs, decodes them into
// typed events, and delivers them on a channel strictly ordered by
// (block number, log index).
//
// Fixture contracts are discovered dynamically: when a CreateInstance log is
// decoded the new instance joins the watched set immediately, so fixture logs
// later in the same batch are not missed. Watch lets the caller pre-seed the
// set with fixtures recovered from the store at startup.
type LogSource struct {
	backend Backend
	cfg     SourceConfig
	signer  types.Signer
	logger  *slog.Logger

	mu      sync.Mutex
	watched map[common.Address]struct{}

	next uint64
	out  chan Event
}

// NewLogSource creates a LogSource polling from cfg.StartBlock.
func NewLogSource(backend Backend, cfg SourceConfig, logger *slog.Logger) *LogSource {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchBlocks == 0 {
		cfg.BatchBlocks = 2000
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	return &LogSource{
		backend: backend,
		cfg:     cfg,
		signer:  types.LatestSignerForChainID(cfg.ChainID),
		logger:  logger.With(slog.String("component", "log_source")),
		watched: make(map[common.Address]struct{}),
		next:    cfg.StartBlock,
		out:     make(chan Event, cfg.BufferSize),
	}
}

// Events returns the ordered event stream. The channel is closed when Run
// returns.
func (s *LogSource) Events() <-chan Event {
	return s.out
}

// Watch adds a fixture address to the watched set. Idempotent.
func (s *LogSource) Watch(addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watched[addr] = struct{}{}
}

func (s *LogSource) isWatched(addr common.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watched[addr]
	return ok
}

// Run polls until ctx is cancelled. Decode failures skip the single log;
// transient RPC failures skip the tick and retry on the next one.
func (s *LogSource) Run(ctx context.Context) error {
	defer close(s.out)

	s.logger.Info("log source starting",
		slog.String("factory", s.cfg.Factory.Hex()),
		slog.Uint64("start_block", s.cfg.StartBlock),
		slog.Duration("poll_interval", s.cfg.PollInterval),
	)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("poll failed, will retry",
				slog.Uint64("next_block", s.next),
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// topicSet returns topic0 values for every event kind the source decodes.
func topicSet() []common.Hash {
	return []common.Hash{
		factoryABI.Events["CreateInstance"].ID,
		fixtureABI.Events["EngageChallenge"].ID,
		fixtureABI.Events["ExitEvent"].ID,
		fixtureABI.Events["EventCancelled"].ID,
		fixtureABI.Events["ResolveEvent"].ID,
		fixtureABI.Events["MarketMetadataSet"].ID,
	}
}

func (s *LogSource) poll(ctx context.Context) error {
	latest, err := s.backend.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("chain: block number: %w", err)
	}
	if latest < s.next {
		return nil
	}

	to := latest
	if span := s.next + s.cfg.BatchBlocks - 1; to > span {
		to = span
	}

	// No address filter: fixtures are discovered mid-batch, so membership is
	// checked per log after sorting instead of baked into the query.
	logs, err := s.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(s.next),
		ToBlock:   new(big.Int).SetUint64(to),
		Topics:    [][]common.Hash{topicSet()},
	})
	if err != nil {
		return fmt.Errorf("chain: filter logs [%d,%d]: %w", s.next, to, err)
	}

	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	blockTimes := make(map[uint64]uint64)
	for i := range logs {
		ev, ok := s.decode(ctx, &logs[i], blockTimes)
		if !ok {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.out <- ev:
		}
	}

	s.next = to + 1
	return nil
}

// decode turns one raw log into a typed event. ok=false means the log is not
// ours (unwatched emitter) or could not be decoded; either way it is skipped
// without aborting the batch.
func (s *LogSource) decode(ctx context.Context, lg *types.Log, blockTimes map[uint64]uint64) (Event, bool) {
	if lg.Removed || len(lg.Topics) == 0 {
		return nil, false
	}
	topic := lg.Topics[0]

	isCreate := topic == factoryABI.Events["CreateInstance"].ID && lg.Address == s.cfg.Factory
	if !isCreate && !s.isWatched(lg.Address) {
		return nil, false
	}

	base, err := s.provenance(ctx, lg, blockTimes, isCreate)
	if err != nil {
		s.logger.Warn("skipping log, provenance lookup failed",
			slog.Uint64("block", lg.BlockNumber),
			slog.Uint64("log_index", uint64(lg.Index)),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	switch {
	case isCreate:
		if len(lg.Topics) < 2 {
			return nil, false
		}
		instance := common.BytesToAddress(lg.Topics[1].Bytes())
		// Join the watched set now so fixture logs later in this batch land.
		s.Watch(instance)
		return CreateInstance{EventLog: base, Instance: instance}, true

	case topic == fixtureABI.Events["EngageChallenge"].ID:
		user, amount, ok := s.unpackStakeEvent(lg, "EngageChallenge")
		if !ok {
			return nil, false
		}
		return EngageChallenge{EventLog: base, User: user, Amount: amount}, true

	case topic == fixtureABI.Events["ExitEvent"].ID:
		user, amount, ok := s.unpackStakeEvent(lg, "ExitEvent")
		if !ok {
			return nil, false
		}
		return ExitEvent{EventLog: base, User: user, Amount: amount}, true

	case topic == fixtureABI.Events["EventCancelled"].ID:
		return EventCancelled{EventLog: base}, true

	case topic == fixtureABI.Events["ResolveEvent"].ID:
		return ResolveEvent{EventLog: base}, true

	case topic == fixtureABI.Events["MarketMetadataSet"].ID:
		vals, err := fixtureABI.Events["MarketMetadataSet"].Inputs.NonIndexed().Unpack(lg.Data)
		if err != nil || len(vals) == 0 {
			s.logger.Warn("undecodable MarketMetadataSet log",
				slog.String("contract", lg.Address.Hex()),
				slog.Uint64("block", lg.BlockNumber),
			)
			return nil, false
		}
		hash, ok := vals[0].(string)
		if !ok {
			return nil, false
		}
		return MarketMetadataSet{EventLog: base, IPFSHash: hash}, true
	}

	return nil, false
}

func (s *LogSource) unpackStakeEvent(lg *types.Log, name string) (common.Address, *big.Int, bool) {
	if len(lg.Topics) < 2 {
		return common.Address{}, nil, false
	}
	user := common.BytesToAddress(lg.Topics[1].Bytes())

	vals, err := fixtureABI.Events[name].Inputs.NonIndexed().Unpack(lg.Data)
	if err != nil || len(vals) == 0 {
		s.logger.Warn("undecodable stake event log",
			slog.String("event", name),
			slog.String("contract", lg.Address.Hex()),
			slog.Uint64("block", lg.BlockNumber),
		)
		return common.Address{}, nil, false
	}
	amount, ok := vals[0].(*big.Int)
	if !ok {
		return common.Address{}, nil, false
	}
	return user, amount, true
}

// provenance enriches a raw log with its block timestamp and, for creation
// events only, the transaction sender (the creator / owner fallback). Other
// handlers never consult the sender, so the extra RPC round trip is skipped.
func (s *LogSource) provenance(ctx context.Context, lg *types.Log, blockTimes map[uint64]uint64, needSender bool) (EventLog, error) {
	bt, ok := blockTimes[lg.BlockNumber]
	if !ok {
		header, err := s.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(lg.BlockNumber))
		if err != nil {
			return EventLog{}, fmt.Errorf("header %d: %w", lg.BlockNumber, err)
		}
		bt = header.Time
		blockTimes[lg.BlockNumber] = bt
	}

	base := EventLog{
		Address:     lg.Address,
		BlockNumber: lg.BlockNumber,
		BlockTime:   bt,
		TxHash:      lg.TxHash,
		LogIndex:    lg.Index,
	}

	if needSender {
		tx, _, err := s.backend.TransactionByHash(ctx, lg.TxHash)
		if err != nil {
			return EventLog{}, fmt.Errorf("tx %s: %w", lg.TxHash.Hex(), err)
		}
		sender, err := types.Sender(s.signer, tx)
		if err != nil {
			return EventLog{}, fmt.Errorf("sender of %s: %w", lg.TxHash.Hex(), err)
		}
		base.TxSender = sender
	}

	return base, nil
}
