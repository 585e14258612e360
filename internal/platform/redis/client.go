// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis opens the client behind the shared Redis session store.

Consoles on several terminals of one station can keep their durable keys in a
single instance. Each client names itself after its terminal so CLIENT LIST
tells the lanes apart.
*/
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/washdesk/internal/platform/constants"
)

// Options describes the client of one console terminal.
type Options struct {
	URL      string
	Terminal string

	// Timeout bounds dialing and every command.
	Timeout time.Duration
}

// ClientName is what CLIENT LIST shows for terminal.
func ClientName(terminal string) string {
	return constants.AppName + ":" + terminal
}

// ParseOptions turns opts into go-redis options without connecting.
func ParseOptions(opts Options) (*redis.Options, error) {
	options, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	options.ClientName = ClientName(opts.Terminal)
	options.PoolSize = 2
	options.MinIdleConns = 0

	if opts.Timeout > 0 {
		options.DialTimeout = opts.Timeout
		options.ReadTimeout = opts.Timeout
		options.WriteTimeout = opts.Timeout
	}
	return options, nil
}

// NewClient connects the client described by opts and checks it answers.
func NewClient(ctx context.Context, opts Options, logger *slog.Logger) (*redis.Client, error) {
	options, err := ParseOptions(opts)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}

	logger.Info("redis client connected",
		slog.String("addr", options.Addr),
		slog.String("client_name", options.ClientName),
	)
	return client, nil
}
