// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"

	"github.com/taibuivan/washdesk/internal/platform/ctxkey"
)

// WithManager returns a new context carrying m.
func WithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, ctxkey.KeySession, m)
}

// FromContext retrieves the [*Manager] installed by [WithManager].
// Returns nil if none was installed.
func FromContext(ctx context.Context) *Manager {
	m, _ := ctx.Value(ctxkey.KeySession).(*Manager)
	return m
}
