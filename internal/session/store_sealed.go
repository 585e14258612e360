// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"fmt"

	"github.com/taibuivan/washdesk/internal/platform/sec"
)

// Sealer encrypts and decrypts single values.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// SealedStore encrypts every value before it reaches the wrapped [Store].
//
// A value that cannot be opened (secret rotated, tampering) reads as absent,
// so the session falls back to anonymous instead of failing at startup.
type SealedStore struct {
	next   Store
	sealer Sealer
}

// NewSealedStore wraps next.
func NewSealedStore(next Store, sealer Sealer) *SealedStore {
	return &SealedStore{next: next, sealer: sealer}
}

// Get implements [Store].
func (s *SealedStore) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, ok, err := s.next.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}

	value, err := s.sealer.Open(sealed)
	if err != nil {
		return "", false, nil
	}
	return value, true, nil
}

// Set implements [Store].
func (s *SealedStore) Set(ctx context.Context, values map[string]string) error {
	return s.Replace(ctx, values)
}

// Delete implements [Store].
func (s *SealedStore) Delete(ctx context.Context, keys ...string) error {
	return s.next.Delete(ctx, keys...)
}

// Replace implements [Store].
func (s *SealedStore) Replace(ctx context.Context, values map[string]string, remove ...string) error {
	sealed := make(map[string]string, len(values))
	for key, value := range values {
		box, err := s.sealer.Seal(value)
		if err != nil {
			return fmt.Errorf("sealed_session_write_failed: %w", err)
		}
		sealed[key] = box
	}
	return s.next.Replace(ctx, sealed, remove...)
}

// Ping implements [Store].
func (s *SealedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

var _ Sealer = (*sec.Sealer)(nil)
