// Package ratelimit implements per-key fixed window request counters.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type counter struct {
	count   int
	resetAt time.Time
}

// Window is an in-memory fixed window counter. It is only correct for a single process.
type Window struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	entries map[string]*counter
}

func NewWindow(limit int, window time.Duration) *Window {
	return &Window{
		limit:   limit,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*counter),
	}
}

func (w *Window) Allow(_ context.Context, key string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	c, ok := w.entries[key]
	if !ok || now.After(c.resetAt) {
		w.entries[key] = &counter{count: 1, resetAt: now.Add(w.window)}
		return true, nil
	}
	if c.count >= w.limit {
		return false, nil
	}
	c.count++
	return true, nil
}

// Sweep drops counters whose window has already passed.
func (w *Window) Sweep() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	var removed int
	for k, c := range w.entries {
		if now.After(c.resetAt) {
			delete(w.entries, k)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (w *Window) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}
