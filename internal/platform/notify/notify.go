// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify carries short operator-facing messages (toasts) from the core
to whatever presents them.

The core only supplies the text and a level; presentation belongs to the
front-end, which polls the console's toast endpoint to drain the [Queue].
*/
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/washdesk/internal/platform/ctxutil"
)

// Level is the severity shown next to a toast.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Toast is one transient notification.
type Toast struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives toasts. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, toast Toast)
}

// Error builds an error-level toast stamped with the current time.
func Error(message string) Toast {
	return Toast{Level: LevelError, Message: message, At: time.Now()}
}

// # Queue

// Queue keeps the most recent undrained toasts in memory.
type Queue struct {
	mu       sync.Mutex
	toasts   []Toast
	capacity int
}

// NewQueue creates a queue holding at most capacity toasts; older ones are dropped first.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{capacity: capacity}
}

// Notify implements [Notifier].
func (q *Queue) Notify(_ context.Context, toast Toast) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.toasts) == q.capacity {
		q.toasts = q.toasts[1:]
	}
	q.toasts = append(q.toasts, toast)
}

// Drain returns the pending toasts, oldest first, and empties the queue.
func (q *Queue) Drain() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.toasts
	q.toasts = nil
	if drained == nil {
		return []Toast{}
	}
	return drained
}

// Len reports the number of pending toasts.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.toasts)
}

// # Fan-out

// Logger writes every toast to the request logger so support can correlate it.
type Logger struct{}

// Notify implements [Notifier].
func (Logger) Notify(ctx context.Context, toast Toast) {
	ctxutil.GetLogger(ctx).LogAttrs(ctx, slog.LevelInfo, "toast_emitted",
		slog.String("level", string(toast.Level)),
		slog.String("message", toast.Message),
	)
}

// Multi forwards each toast to every notifier in order.
type Multi []Notifier

// Notify implements [Notifier].
func (m Multi) Notify(ctx context.Context, toast Toast) {
	for _, notifier := range m {
		notifier.Notify(ctx, toast)
	}
}
