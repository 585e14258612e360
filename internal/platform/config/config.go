// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles console-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. A local '.env' file is
loaded first when present so a terminal can be configured without exporting
variables by hand.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (store, transport) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// # Session Store Drivers

const (
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// # Configuration Schema

// Config holds all runtime configuration for the console process.
type Config struct {

	// Local console server
	ConsolePort string `env:"CONSOLE_PORT" envDefault:"4280"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Backend REST API
	BackendURL            string        `env:"BACKEND_URL,required"`
	StationHeader         string        `env:"STATION_HEADER"          envDefault:"x-station-id"`
	RequestTimeout        time.Duration `env:"REQUEST_TIMEOUT"         envDefault:"10s"`
	RefreshOnUnauthorized bool          `env:"REFRESH_ON_UNAUTHORIZED" envDefault:"true"`

	// Durable session store
	SessionStore  string `env:"SESSION_STORE"  envDefault:"sqlite"`
	SQLitePath    string `env:"SQLITE_PATH"    envDefault:"./data/session.db"`
	RedisURL      string `env:"REDIS_URL"`
	DatabaseURL   string `env:"DATABASE_URL"`
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./migrations"`

	// StoreTimeout bounds every store round trip, readiness pings included.
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"2s"`

	// TerminalID namespaces the durable keys when several consoles share a store.
	TerminalID string `env:"TERMINAL_ID" envDefault:"default"`

	// SessionSecret enables at-rest sealing of the stored tokens when set.
	SessionSecret string `env:"SESSION_SECRET"`

	// Console views
	QueryCacheTTL time.Duration `env:"QUERY_CACHE_TTL" envDefault:"30s"`
	LoginRateRPS  float64       `env:"LOGIN_RATE_RPS"  envDefault:"1"`
}

// # Configuration Loading

// Load reads an optional '.env' file and parses environment variables into a [Config] struct.
func Load(files ...string) (*Config, error) {

	// Variables already present in the environment always win over the file.
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: failed to read %s: %w", file, err)
		}
	}

	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks the cross-field rules env tags cannot express.
func (c *Config) validate() error {
	switch c.SessionStore {
	case StoreSQLite, StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL is required when SESSION_STORE=redis")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required when SESSION_STORE=postgres")
		}
	default:
		return fmt.Errorf("config: unknown SESSION_STORE %q", c.SessionStore)
	}

	if c.StationHeader == "" {
		return errors.New("config: STATION_HEADER must not be empty")
	}

	if c.StoreTimeout <= 0 {
		return errors.New("config: STORE_TIMEOUT must be positive")
	}

	if c.LoginRateRPS <= 0 {
		return errors.New("config: LOGIN_RATE_RPS must be positive")
	}

	return nil
}

// IsDevelopment reports whether the console is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the console is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
