// Package app provides top-level application lifecycle management for the
// Makao indexer. It wires together all dependencies (stores, cache, archive,
// chain source, fetch manager, indexer) and supervises their goroutines.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/makaolabs/makao-indexer/internal/config"
	"github.com/makaolabs/makao-indexer/internal/domain"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, restores the watched fixture set from the
// store, and supervises the log source, fetch workers, and indexer loop
// until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting makao indexer",
		slog.String("factory", a.cfg.Chain.FactoryAddress),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	if err := a.rewatchMarkets(ctx, deps); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting log source")
		err := deps.Source.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("log source: %w", err)
	})

	g.Go(func() error {
		a.logger.Info("starting fetch workers")
		err := deps.Manager.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("fetch manager: %w", err)
	})

	g.Go(func() error {
		a.logger.Info("starting indexer loop")
		err := deps.Indexer.Run(ctx, deps.Source.Events(), deps.Manager.Results())
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("indexer: %w", err)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// rewatchMarkets re-seeds the log source's watched set with every market
// already materialized, so fixture events keep flowing after a restart.
func (a *App) rewatchMarkets(ctx context.Context, deps *Dependencies) error {
	const pageSize = 500
	offset := 0
	total := 0
	for {
		markets, err := deps.Markets.List(ctx, domain.ListOpts{Limit: pageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("app: list markets for rewatch: %w", err)
		}
		for _, m := range markets {
			deps.Source.Watch(common.HexToAddress(m.ID))
		}
		total += len(markets)
		if len(markets) < pageSize {
			break
		}
		offset += pageSize
	}
	a.logger.Info("rewatched persisted markets", slog.Int("count", total))
	return nil
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// bigChainID converts the configured chain id for signer derivation.
func bigChainID(id int64) *big.Int {
	if id <= 0 {
		return nil
	}
	return big.NewInt(id)
}
