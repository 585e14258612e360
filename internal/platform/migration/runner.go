// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration applies the console_session schema with golang-migrate.
//
// The console usually lives inside a station database that other services
// migrate too, so its version row is kept in a table of its own.
package migration

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// pgx5 driver registers "pgx5" scheme for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// file source reads .sql files from disk.
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/taibuivan/washdesk/internal/platform/constants"
)

// VersionTable records the console schema version apart from the host database's own.
const VersionTable = constants.AppName + "_schema_migrations"

// RunUp applies every pending migration found under migrationsPath.
func RunUp(dsn string, migrationsPath string, logger *slog.Logger) error {
	databaseURL, err := DatabaseURL(dsn)
	if err != nil {
		return err
	}

	migrator, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer func() {
		if sourceErr, dbErr := migrator.Close(); sourceErr != nil || dbErr != nil {
			logger.Warn("migration_close_failed", slog.Any("source", sourceErr), slog.Any("database", dbErr))
		}
	}()
	migrator.Log = &migrateLogger{logger: logger}

	from, dirty, err := migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return fmt.Errorf("migration: read version: %w", err)
	case dirty:
		return fmt.Errorf("migration: %s is dirty at version %d", VersionTable, from)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration: up failed: %w", err)
	}

	to, _, _ := migrator.Version()
	logger.Info("migration_applied",
		slog.String("table", VersionTable),
		slog.Int("from_version", int(from)),
		slog.Int("to_version", int(to)),
	)
	return nil
}

// DatabaseURL rewrites a postgres URL for the pgx5 driver and pins the version table.
//
// Only URL-form DSNs are accepted: the driver reads its options from the query string.
func DatabaseURL(dsn string) (string, error) {
	rest, ok := strings.CutPrefix(dsn, "postgres://")
	if !ok {
		rest, ok = strings.CutPrefix(dsn, "postgresql://")
	}
	if !ok {
		rest, ok = strings.CutPrefix(dsn, "pgx5://")
	}
	if !ok {
		return "", fmt.Errorf("migration: DATABASE_URL must be a postgres:// URL")
	}

	parsed, err := url.Parse("pgx5://" + rest)
	if err != nil {
		return "", fmt.Errorf("migration: invalid DATABASE_URL: %w", err)
	}

	query := parsed.Query()
	query.Set("x-migrations-table", VersionTable)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// migrateLogger adapts golang-migrate's logger interface to slog.
type migrateLogger struct {
	logger *slog.Logger
}

// Printf implements migrate.Logger.
func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Verbose implements migrate.Logger.
func (l *migrateLogger) Verbose() bool { return false }
