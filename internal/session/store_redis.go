// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/washdesk/internal/platform/constants"
	"github.com/taibuivan/washdesk/internal/platform/dberr"
)

// RedisStore keeps the session in Redis under `washdesk:session:<terminal>:<key>`.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store for terminal.
func NewRedisStore(client *redis.Client, terminal string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: constants.RedisPrefixSession + terminal + ":",
	}
}

/*
Get retrieves the value stored under key.

Returns:
  - string: Stored value
  - bool: false when the key is absent
  - error: connectivity errors
*/
func (store *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := store.client.Get(ctx, store.prefix+key).Result()
	if err != nil {
		if dberr.IsMissing(err) {
			return "", false, nil
		}
		return "", false, dberr.Wrap(err, "redis_session_get_failed")
	}
	return value, true, nil
}

// Set implements [Store].
func (store *RedisStore) Set(ctx context.Context, values map[string]string) error {
	return store.Replace(ctx, values)
}

// Delete implements [Store].
func (store *RedisStore) Delete(ctx context.Context, keys ...string) error {
	return store.Replace(ctx, nil, keys...)
}

/*
Replace removes and writes keys in one MULTI/EXEC transaction.

Session keys carry no TTL: they live until the operator signs out.
*/
func (store *RedisStore) Replace(ctx context.Context, values map[string]string, remove ...string) error {
	if len(values) == 0 && len(remove) == 0 {
		return nil
	}

	_, err := store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(remove) > 0 {
			prefixed := make([]string, len(remove))
			for i, key := range remove {
				prefixed[i] = store.prefix + key
			}
			pipe.Del(ctx, prefixed...)
		}
		for key, value := range values {
			pipe.Set(ctx, store.prefix+key, value, 0)
		}
		return nil
	})
	if err != nil {
		return dberr.Wrap(err, "redis_session_write_failed")
	}
	return nil
}

// Ping implements [Store].
func (store *RedisStore) Ping(ctx context.Context) error {
	if err := store.client.Ping(ctx).Err(); err != nil {
		return dberr.Wrap(err, "redis_session_ping_failed")
	}
	return nil
}
