// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/washdesk/internal/platform/dberr"
)

// PostgresStore keeps the session in the console_session table, for terminals
// that already share a station database.
type PostgresStore struct {
	pool     *pgxpool.Pool
	terminal string
}

// NewPostgresStore creates a store for terminal over pool.
// The schema comes from the migrations directory.
func NewPostgresStore(pool *pgxpool.Pool, terminal string) *PostgresStore {
	return &PostgresStore{pool: pool, terminal: terminal}
}

// Get implements [Store].
func (store *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM console_session WHERE terminal_id = $1 AND key = $2`

	var value string
	err := store.pool.QueryRow(ctx, query, store.terminal, key).Scan(&value)
	if dberr.IsMissing(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, dberr.Wrap(err, "postgres_session_get_failed")
	}
	return value, true, nil
}

// Set implements [Store].
func (store *PostgresStore) Set(ctx context.Context, values map[string]string) error {
	return store.Replace(ctx, values)
}

// Delete implements [Store].
func (store *PostgresStore) Delete(ctx context.Context, keys ...string) error {
	return store.Replace(ctx, nil, keys...)
}

// Replace implements [Store]. The delete and every upsert run in one transaction.
func (store *PostgresStore) Replace(ctx context.Context, values map[string]string, remove ...string) error {
	if len(values) == 0 && len(remove) == 0 {
		return nil
	}

	const deleteQuery = `DELETE FROM console_session WHERE terminal_id = $1 AND key = ANY($2)`
	const upsertQuery = `
		INSERT INTO console_session (terminal_id, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (terminal_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	err := pgx.BeginFunc(ctx, store.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		if len(remove) > 0 {
			batch.Queue(deleteQuery, store.terminal, remove)
		}
		for key, value := range values {
			batch.Queue(upsertQuery, store.terminal, key, value)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return dberr.Wrap(err, "postgres_session_write_failed")
	}
	return nil
}

// Ping implements [Store].
func (store *PostgresStore) Ping(ctx context.Context) error {
	if err := store.pool.Ping(ctx); err != nil {
		return dberr.Wrap(err, "postgres_session_ping_failed")
	}
	return nil
}
