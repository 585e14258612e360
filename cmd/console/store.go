// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taibuivan/washdesk/internal/platform/config"
	"github.com/taibuivan/washdesk/internal/platform/migration"
	pgstore "github.com/taibuivan/washdesk/internal/platform/postgres"
	redisstore "github.com/taibuivan/washdesk/internal/platform/redis"
	"github.com/taibuivan/washdesk/internal/platform/sec"
	"github.com/taibuivan/washdesk/internal/session"
)

// openStore builds the configured durable session store and the function
// releasing it. With SESSION_SECRET set, values are sealed before they are written.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (session.Store, func(), error) {
	var (
		store   session.Store
		release = func() {}
	)

	switch cfg.SessionStore {
	case config.StoreMemory:
		log.Warn("session_store_volatile", slog.String("hint", "the session will not survive a restart"))
		store = session.NewMemoryStore()

	case config.StoreSQLite:
		db, err := session.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store = session.NewSQLiteStore(db, cfg.TerminalID)
		release = func() {
			log.Info("closing sqlite session store")
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}

	case config.StoreRedis:
		rdb, err := redisstore.NewClient(ctx, redisstore.Options{
			URL:      cfg.RedisURL,
			Terminal: cfg.TerminalID,
			Timeout:  cfg.StoreTimeout,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		store = session.NewRedisStore(rdb, cfg.TerminalID)
		release = func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}

	case config.StorePostgres:
		if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
			return nil, nil, err
		}
		pool, err := pgstore.NewPool(ctx, pgstore.Options{
			DSN:      cfg.DatabaseURL,
			Terminal: cfg.TerminalID,
			Timeout:  cfg.StoreTimeout,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		store = session.NewPostgresStore(pool, cfg.TerminalID)
		release = func() {
			log.Info("closing postgres pool")
			pool.Close()
		}

	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}

	if cfg.SessionSecret != "" {
		sealer, err := sec.NewSealer(cfg.SessionSecret, cfg.TerminalID)
		if err != nil {
			release()
			return nil, nil, err
		}
		store = session.NewSealedStore(store, sealer)
		log.Info("session_store_sealed")
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		release()
		return nil, nil, fmt.Errorf("ping session store: %w", err)
	}

	return store, release, nil
}
