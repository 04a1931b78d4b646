package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MAKAO_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MAKAO_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "MAKAO_CHAIN_RPC_URL")
	setStr(&cfg.Chain.FactoryAddress, "MAKAO_CHAIN_FACTORY_ADDRESS")
	setInt64(&cfg.Chain.ChainID, "MAKAO_CHAIN_ID")
	setUint64(&cfg.Chain.StartBlock, "MAKAO_CHAIN_START_BLOCK")
	setDuration(&cfg.Chain.PollInterval, "MAKAO_CHAIN_POLL_INTERVAL")
	setUint64(&cfg.Chain.BatchBlocks, "MAKAO_CHAIN_BATCH_BLOCKS")

	// ── IPFS ──
	setStr(&cfg.IPFS.GatewayURL, "MAKAO_IPFS_GATEWAY_URL")
	setDuration(&cfg.IPFS.FetchTimeout, "MAKAO_IPFS_FETCH_TIMEOUT")
	setInt(&cfg.IPFS.Workers, "MAKAO_IPFS_WORKERS")
	setInt(&cfg.IPFS.QueueSize, "MAKAO_IPFS_QUEUE_SIZE")
	setInt(&cfg.IPFS.MaxAttempts, "MAKAO_IPFS_MAX_ATTEMPTS")
	setDuration(&cfg.IPFS.RetryDelay, "MAKAO_IPFS_RETRY_DELAY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "MAKAO_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MAKAO_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MAKAO_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MAKAO_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MAKAO_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MAKAO_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MAKAO_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MAKAO_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MAKAO_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MAKAO_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "MAKAO_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MAKAO_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MAKAO_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MAKAO_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MAKAO_REDIS_POOL_SIZE")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MAKAO_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MAKAO_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MAKAO_S3_REGION")
	setStr(&cfg.S3.Bucket, "MAKAO_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MAKAO_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MAKAO_S3_SECRET_KEY")
	setStr(&cfg.S3.Prefix, "MAKAO_S3_PREFIX")
	setBool(&cfg.S3.ForcePathStyle, "MAKAO_S3_FORCE_PATH_STYLE")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "MAKAO_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
