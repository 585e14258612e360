// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"maps"
	"sync"
)

// # Persistence Port

// Store is the durable key/value copy of the session.
//
// The [Manager] is its only writer. Implementations must apply each Set, Delete
// and Replace atomically: a logout clears every key or none, and a sign-in
// never leaves the old station beside half of the new identity.
type Store interface {
	// Get returns the value of key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes every pair in values.
	Set(ctx context.Context, values map[string]string) error

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Replace removes the keys in remove and writes values in one step.
	Replace(ctx context.Context, values map[string]string, remove ...string) error

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}

// # In-Memory Store

// MemoryStore keeps the session in process memory. It does not survive a
// restart and is meant for tests and throwaway terminals.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements [Store].
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

// Set implements [Store].
func (s *MemoryStore) Set(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.values, values)
	return nil
}

// Delete implements [Store].
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

// Replace implements [Store].
func (s *MemoryStore) Replace(_ context.Context, values map[string]string, remove ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range remove {
		delete(s.values, key)
	}
	maps.Copy(s.values, values)
	return nil
}

// Ping implements [Store].
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Snapshot returns a copy of every stored pair.
func (s *MemoryStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}
