package ipfs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/makaolabs/makao-indexer/internal/domain"
)

// Fetcher retrieves the payload for a content address. *Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, cid string) ([]byte, error)
}

// Result is one resolved dynamic fetch: the raw payload plus the correlation
// context exactly as it was attached at registration.
type Result struct {
	CID     string
	Data    []byte
	Context domain.SourceContext
}

type job struct {
	id   string
	cid  string
	sctx domain.SourceContext
}

// Manager runs the dynamic metadata fetches. Register is fire-and-forget:
// the triggering handler never waits, and the resolved payload re-enters the
// pipeline through the Results channel, consumed by the single indexer loop.
// A fetch that exhausts its attempts is dropped with a log entry — that
// stalls only the one derived record, never the pipeline.
type Manager struct {
	fetcher     Fetcher
	jobs        chan job
	results     chan Result
	workers     int
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// ManagerConfig holds worker-pool parameters.
type ManagerConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
}

// NewManager creates a Manager; call Run to start the workers.
func NewManager(fetcher Fetcher, cfg ManagerConfig, logger *slog.Logger) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &Manager{
		fetcher:     fetcher,
		jobs:        make(chan job, cfg.QueueSize),
		results:     make(chan Result, cfg.QueueSize),
		workers:     cfg.Workers,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		logger:      logger.With(slog.String("component", "ipfs_manager")),
	}
}

// Register schedules a fetch for cid with the given correlation context. It
// never blocks the caller: when the queue is full the job is dropped with a
// log entry. Registering the same cid twice is tolerated; the duplicate
// resolution collides on identical identities downstream and overwrites.
func (m *Manager) Register(cid string, sctx domain.SourceContext) {
	j := job{id: uuid.NewString(), cid: cid, sctx: sctx}
	select {
	case m.jobs <- j:
		m.logger.Info("metadata fetch registered",
			slog.String("job_id", j.id),
			slog.String("cid", cid),
		)
	default:
		m.logger.Warn("fetch queue full, dropping registration",
			slog.String("cid", cid),
		)
	}
}

// Results returns the channel of resolved fetches.
func (m *Manager) Results() <-chan Result {
	return m.results
}

// Run starts the worker pool and blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < m.workers; i++ {
		g.Go(func() error {
			return m.worker(ctx)
		})
	}
	return g.Wait()
}

func (m *Manager) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-m.jobs:
			m.resolve(ctx, j)
		}
	}
}

func (m *Manager) resolve(ctx context.Context, j job) {
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		data, err := m.fetcher.Fetch(ctx, j.cid)
		if err == nil {
			select {
			case <-ctx.Done():
			case m.results <- Result{CID: j.cid, Data: data, Context: j.sctx}:
				m.logger.Info("metadata fetch resolved",
					slog.String("job_id", j.id),
					slog.String("cid", j.cid),
					slog.Int("attempt", attempt),
					slog.Int("bytes", len(data)),
				)
			}
			return
		}

		m.logger.Warn("metadata fetch attempt failed",
			slog.String("job_id", j.id),
			slog.String("cid", j.cid),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		if attempt < m.maxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.retryDelay):
			}
		}
	}

	m.logger.Error("metadata fetch abandoned",
		slog.String("job_id", j.id),
		slog.String("cid", j.cid),
		slog.Int("attempts", m.maxAttempts),
	)
}
