// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command console is the entry point of the washdesk operator console.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables and .env.
//  3. Open the durable session store (sqlite, redis, postgres or memory).
//  4. Restore the previous session.
//  5. Wire the authenticated transport, view cache and HTTP handlers.
//  6. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/taibuivan/washdesk/internal/apiclient"
	"github.com/taibuivan/washdesk/internal/console"
	"github.com/taibuivan/washdesk/internal/guard"
	"github.com/taibuivan/washdesk/internal/identity"
	"github.com/taibuivan/washdesk/internal/platform/config"
	"github.com/taibuivan/washdesk/internal/platform/constants"
	"github.com/taibuivan/washdesk/internal/platform/notify"
	"github.com/taibuivan/washdesk/internal/querycache"
	"github.com/taibuivan/washdesk/internal/session"
)

func main() {
	banner()

	// ── 1. Logger ──────────────────────────────────────────────────────────
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ConsolePort),
		slog.String("session_store", cfg.SessionStore),
		slog.String("terminal", cfg.TerminalID),
	)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Use a deadline so an unreachable store is caught quickly rather than hanging.
	startupCtx, startupCancel := context.WithTimeout(rootCtx, 30*time.Second)
	defer startupCancel()

	// ── 3. Session Store ──────────────────────────────────────────────────
	store, closeStore, err := openStore(startupCtx, cfg, log)
	must(log, err, "open session store")
	defer closeStore()

	// ── 4. Session ────────────────────────────────────────────────────────
	httpClient := identity.NewHTTPClient(cfg.RequestTimeout)
	credentials := identity.NewClient(cfg.BackendURL, httpClient)
	manager := session.NewManager(store, credentials, session.WithLogger(log))

	restored, err := manager.Restore(rootCtx)
	must(log, err, "restore session")
	go func() {
		if err := <-restored; err != nil {
			log.Warn("session_restore_failed", slog.Any("error", err))
		}
	}()

	// ── 5. Authenticated Transport ────────────────────────────────────────
	toasts := notify.NewQueue(constants.ToastQueueCapacity)
	notifier := notify.Multi{toasts, notify.Logger{}}

	transport := apiclient.NewTransport(manager,
		apiclient.WithBase(httpClient.Transport),
		apiclient.WithStationHeader(cfg.StationHeader),
		apiclient.WithRefresh(cfg.RefreshOnUnauthorized),
		apiclient.WithSignedOut(console.SignedOut(log)),
	)
	api := apiclient.NewClient(cfg.BackendURL, apiclient.NewHTTPClient(transport, cfg.RequestTimeout), notifier)

	views := querycache.New(api, cfg.QueryCacheTTL)
	manager.OnLogout(views.Clear)
	go views.Run(rootCtx, time.Minute)

	// ── 6. HTTP Server ────────────────────────────────────────────────────
	server := console.NewServer(rootCtx, cfg, log, console.Dependencies{
		Session: manager,
		Views:   views,
		Toasts:  toasts,
		Routes:  guard.MustTable(guard.ConsoleRoutes()...),
		Health: console.HealthDependencies{
			StoreName:  cfg.SessionStore,
			CheckStore: store.Ping,
			Timeout:    cfg.StoreTimeout,
		},
	})

	// ── 7. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	log.Info("shutting down console", slog.Duration("timeout", constants.ShutdownTimeout))
	rootCancel()

	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("console stopped cleanly")
}

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", constants.AppName))
}

func banner() {
	figure.NewFigure(constants.AppName, "cybermedium", true).Print()
	fmt.Println()
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned and
// handled explicitly.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
