// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package postgres opens the pgx pool behind the Postgres session store.
//
// A station database is shared with other services, so every connection
// announces the terminal it belongs to through application_name and is
// bounded by the configured store timeout.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/washdesk/internal/platform/constants"
)

// A terminal reads and writes a handful of rows per sign-in.
const (
	maxConns        = 2
	maxConnIdleTime = 5 * time.Minute
)

// Options describes the pool of one console terminal.
type Options struct {
	DSN      string
	Terminal string

	// Timeout bounds the connection attempt and every statement.
	Timeout time.Duration
}

// ApplicationName is what pg_stat_activity shows for terminal.
func ApplicationName(terminal string) string {
	return constants.AppName + "/" + terminal
}

// ParseConfig turns opts into a pool configuration without connecting.
func ParseConfig(opts Options) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid DSN: %w", err)
	}

	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = 0
	poolConfig.MaxConnIdleTime = maxConnIdleTime

	params := poolConfig.ConnConfig.RuntimeParams
	params["application_name"] = ApplicationName(opts.Terminal)
	if opts.Timeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = opts.Timeout
		params["statement_timeout"] = fmt.Sprint(opts.Timeout.Milliseconds())
	}

	return poolConfig, nil
}

// NewPool connects the pool described by opts and checks it answers.
func NewPool(ctx context.Context, opts Options, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := ParseConfig(opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping failed: %w", err)
	}

	logger.Info("postgres pool connected",
		slog.String("application_name", poolConfig.ConnConfig.RuntimeParams["application_name"]),
		slog.Int("max_conns", int(poolConfig.MaxConns)),
	)
	return pool, nil
}
