package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	s3blob "github.com/makaolabs/makao-indexer/internal/blob/s3"
	"github.com/makaolabs/makao-indexer/internal/cache/redis"
	"github.com/makaolabs/makao-indexer/internal/chain"
	"github.com/makaolabs/makao-indexer/internal/config"
	"github.com/makaolabs/makao-indexer/internal/domain"
	"github.com/makaolabs/makao-indexer/internal/indexer"
	"github.com/makaolabs/makao-indexer/internal/ipfs"
	"github.com/makaolabs/makao-indexer/internal/store/postgres"
)

// Dependencies bundles every component the application run loop needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Markets     domain.MarketStore
	Engagements domain.EngagementStore
	Stats       domain.GlobalStatStore
	Metadata    domain.MetadataStore

	Source  *chain.LogSource
	Manager *ipfs.Manager
	Indexer *indexer.Indexer
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Markets = postgres.NewMarketStore(pool)
	deps.Engagements = postgres.NewEngagementStore(pool)
	deps.Stats = postgres.NewGlobalStatStore(pool)
	deps.Metadata = postgres.NewMetadataStore(pool)

	// --- Redis market cache (optional) ---
	var cache indexer.MarketCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		cache = redis.NewMarketCache(redisClient)
	}

	// --- S3 payload archive (optional) ---
	var archiver indexer.PayloadArchiver
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		archiver = s3blob.NewArchiver(s3Client, cfg.S3.Prefix)
	}

	// --- Ethereum RPC + log source ---
	ethClient, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: dial rpc %s: %w", cfg.Chain.RPCURL, err)
	}
	closers = append(closers, ethClient.Close)

	deps.Source = chain.NewLogSource(ethClient, chain.SourceConfig{
		Factory:      common.HexToAddress(cfg.Chain.FactoryAddress),
		StartBlock:   cfg.Chain.StartBlock,
		ChainID:      bigChainID(cfg.Chain.ChainID),
		PollInterval: cfg.Chain.PollInterval.Duration,
		BatchBlocks:  cfg.Chain.BatchBlocks,
	}, logger)

	// --- IPFS fetch pipeline ---
	gateway := ipfs.NewClient(cfg.IPFS.GatewayURL, cfg.IPFS.FetchTimeout.Duration)
	deps.Manager = ipfs.NewManager(gateway, ipfs.ManagerConfig{
		Workers:     cfg.IPFS.Workers,
		QueueSize:   cfg.IPFS.QueueSize,
		MaxAttempts: cfg.IPFS.MaxAttempts,
		RetryDelay:  cfg.IPFS.RetryDelay.Duration,
	}, logger)

	// --- Indexer ---
	deps.Indexer = indexer.New(indexer.Deps{
		Markets:     deps.Markets,
		Engagements: deps.Engagements,
		Stats:       deps.Stats,
		Metadata:    deps.Metadata,
		Readers: func(addr common.Address) indexer.ContractReader {
			return chain.NewFixtureReader(ethClient, addr, logger)
		},
		Sources:   deps.Manager,
		Activator: deps.Source,
		Cache:     cache,
		Archiver:  archiver,
		Logger:    logger,
	})

	return deps, cleanup, nil
}
