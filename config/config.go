// Package config reads settings from a .env file, the environment and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	DefaultCacheTTL = 60 * time.Second
)

type Config struct {
	Store     string
	DataFile  string
	DBURL     string
	RedisAddr string
	CacheTTL  time.Duration
	LogLevel  string
	LogDev    bool
}

// Load builds a Config for the program invoked with args (without the
// program name).
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	ttl, err := time.ParseDuration(getEnv("CACHE_TTL", DefaultCacheTTL.String()))
	if err != nil {
		return nil, fmt.Errorf("CACHE_TTL: %w", err)
	}
	logDev, err := strconv.ParseBool(getEnv("LOG_DEV", "false"))
	if err != nil {
		return nil, fmt.Errorf("LOG_DEV: %w", err)
	}

	cfg := &Config{}
	fs := pflag.NewFlagSet("bankledger", pflag.ContinueOnError)
	fs.StringVar(&cfg.Store, "store", getEnv("BANK_STORE", StoreMemory), "storage backend: memory or postgres")
	fs.StringVar(&cfg.DataFile, "data-file", getEnv("BANK_DATA_FILE", "bank.json"), "snapshot file for the memory store, empty to disable")
	fs.StringVar(&cfg.DBURL, "db-url", getEnv("DB_URL", ""), "PostgreSQL connection URL")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", ""), "Redis address for the account cache, empty to disable")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", ttl, "how long cached accounts live")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.BoolVar(&cfg.LogDev, "log-dev", logDev, "human readable development logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DBURL == "" {
			return errors.New("postgres store requires DB_URL or --db-url")
		}
	default:
		return fmt.Errorf("unknown store %q, want %s or %s", c.Store, StoreMemory, StorePostgres)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", c.CacheTTL)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
