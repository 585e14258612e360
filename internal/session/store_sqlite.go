// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/taibuivan/washdesk/internal/platform/dberr"
)

// SessionEntry is one durable key of one terminal.
type SessionEntry struct {
	Terminal  string `gorm:"primaryKey;size:64"`
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName pins the table shared with the Postgres schema.
func (SessionEntry) TableName() string { return "console_session" }

// SQLiteStore keeps the session in a local SQLite file, the default for a
// single console terminal.
type SQLiteStore struct {
	db       *gorm.DB
	terminal string
}

// OpenSQLite opens (or creates) the database at path and migrates the session table.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	if err := db.AutoMigrate(&SessionEntry{}); err != nil {
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return db, nil
}

// NewSQLiteStore creates a store for terminal over db.
func NewSQLiteStore(db *gorm.DB, terminal string) *SQLiteStore {
	return &SQLiteStore{db: db, terminal: terminal}
}

// Get implements [Store].
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var entry SessionEntry
	err := s.db.WithContext(ctx).
		Where("terminal = ? AND key = ?", s.terminal, key).
		First(&entry).Error

	if dberr.IsMissing(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, dberr.Wrap(err, "sqlite_session_get_failed")
	}
	return entry.Value, true, nil
}

// Set implements [Store].
func (s *SQLiteStore) Set(ctx context.Context, values map[string]string) error {
	return s.Replace(ctx, values)
}

// Delete implements [Store].
func (s *SQLiteStore) Delete(ctx context.Context, keys ...string) error {
	return s.Replace(ctx, nil, keys...)
}

// Replace implements [Store]. The deletes and upserts share one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, values map[string]string, remove ...string) error {
	if len(values) == 0 && len(remove) == 0 {
		return nil
	}

	now := time.Now()
	entries := make([]SessionEntry, 0, len(values))
	for key, value := range values {
		entries = append(entries, SessionEntry{Terminal: s.terminal, Key: key, Value: value, UpdatedAt: now})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(remove) > 0 {
			err := tx.Where("terminal = ? AND key IN ?", s.terminal, remove).Delete(&SessionEntry{}).Error
			if err != nil {
				return err
			}
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "terminal"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&entries).Error
	})
	if err != nil {
		return dberr.Wrap(err, "sqlite_session_write_failed")
	}
	return nil
}

// Ping implements [Store].
func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}
