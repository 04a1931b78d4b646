// Package config defines the top-level configuration for the Makao indexer
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MAKAO_* environment variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	IPFS     IPFSConfig     `toml:"ipfs"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig holds RPC endpoint and log-polling parameters.
type ChainConfig struct {
	RPCURL         string   `toml:"rpc_url"`
	FactoryAddress string   `toml:"factory_address"`
	ChainID        int64    `toml:"chain_id"`
	StartBlock     uint64   `toml:"start_block"`
	PollInterval   duration `toml:"poll_interval"`
	BatchBlocks    uint64   `toml:"batch_blocks"`
}

// IPFSConfig holds gateway and fetch worker-pool parameters.
type IPFSConfig struct {
	GatewayURL   string   `toml:"gateway_url"`
	FetchTimeout duration `toml:"fetch_timeout"`
	Workers      int      `toml:"workers"`
	QueueSize    int      `toml:"queue_size"`
	MaxAttempts  int      `toml:"max_attempts"`
	RetryDelay   duration `toml:"retry_delay"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis cache parameters. Disabled by default.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	PoolSize int    `toml:"pool_size"`
}

// S3Config holds payload-archive parameters. Disabled by default.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	Prefix         string `toml:"prefix"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration wraps time.Duration for TOML decoding of strings like "5s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for the TOML decoder.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			ChainID:      1,
			PollInterval: duration{5 * time.Second},
			BatchBlocks:  2000,
		},
		IPFS: IPFSConfig{
			GatewayURL:   "https://ipfs.io",
			FetchTimeout: duration{30 * time.Second},
			Workers:      4,
			QueueSize:    256,
			MaxAttempts:  3,
			RetryDelay:   duration{2 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "makao",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "makao-metadata",
			Prefix:         "metadata",
			ForcePathStyle: true,
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.FactoryAddress == "" {
		errs = append(errs, "chain: factory_address must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}

	if c.IPFS.GatewayURL == "" {
		errs = append(errs, "ipfs: gateway_url must not be empty")
	}
	if c.IPFS.Workers <= 0 {
		errs = append(errs, "ipfs: workers must be positive")
	}

	if c.Postgres.DSN == "" && (c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "") {
		errs = append(errs, "postgres: either dsn or host/database/user must be set")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
