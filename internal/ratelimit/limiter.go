// Package ratelimit implements a fixed-window request counter backed by the
// shared key-value store. The limiter is advisory: storage failures never
// block a request.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/searchlens/backend/internal/cache"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Limited   bool  `json:"limited"`
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"reset_at"` // Unix timestamp
}

// window is the stored counter for one fixed time bucket.
type window struct {
	Count   int   `json:"count"`
	ResetAt int64 `json:"reset_at"`
}

// Limiter counts requests per (key, window index) in the key-value store.
type Limiter struct {
	store cache.Store
	now   func() time.Time
}

// NewLimiter creates a new fixed-window limiter.
func NewLimiter(store cache.Store) *Limiter {
	return &Limiter{
		store: store,
		now:   time.Now,
	}
}

// Check records a request against the window for key and reports whether the
// caller should be throttled. Counters for concurrent requests on the same key
// may under-count; the limiter is best-effort, not a hard guarantee.
func (l *Limiter) Check(ctx context.Context, key string, limit int, windowSeconds int) Result {
	now := l.now()
	windowDur := time.Duration(windowSeconds) * time.Second
	windowIndex := now.Unix() / int64(windowSeconds)
	storeKey := fmt.Sprintf("%s:%d", key, windowIndex)

	fresh := Result{
		Limited:   false,
		Remaining: limit - 1,
		ResetAt:   now.Add(windowDur).Unix(),
	}

	current, err := l.readWindow(ctx, storeKey)
	if err != nil {
		// Fail open: a storage error must not block the request.
		log.Printf("[ratelimit] store read failed for %s, failing open: %v", key, err)
		return Result{Limited: false, Remaining: limit, ResetAt: fresh.ResetAt}
	}

	// Missing window, or a stale one the store has not expired yet. The exact
	// boundary now == reset counts as expired so a window can never outlive
	// its reset time.
	if current == nil || now.Unix() >= current.ResetAt {
		l.writeWindow(ctx, storeKey, &window{Count: 1, ResetAt: fresh.ResetAt}, windowDur)
		return fresh
	}

	if current.Count >= limit {
		return Result{Limited: true, Remaining: 0, ResetAt: current.ResetAt}
	}

	current.Count++
	l.writeWindow(ctx, storeKey, current, windowDur)

	remaining := limit - current.Count
	if remaining < 0 {
		remaining = 0
	}

	return Result{Limited: false, Remaining: remaining, ResetAt: current.ResetAt}
}

// readWindow returns the stored window, nil on a miss.
func (l *Limiter) readWindow(ctx context.Context, storeKey string) (*window, error) {
	data, err := l.store.Get(ctx, storeKey)
	if err != nil {
		if err == cache.ErrCacheMiss {
			return nil, nil
		}
		return nil, err
	}

	var w window
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		// Corrupt counter; treat as a fresh window.
		return nil, nil
	}

	return &w, nil
}

// writeWindow stores the counter. Write failures are logged and ignored: the
// limiter stays advisory.
func (l *Limiter) writeWindow(ctx context.Context, storeKey string, w *window, ttl time.Duration) {
	data, err := json.Marshal(w)
	if err != nil {
		return
	}
	// Backing TTL slightly past the reset so the stale-window check in Check
	// stays the source of truth, not store expiry granularity.
	if err := l.store.Set(ctx, storeKey, string(data), ttl+time.Second); err != nil {
		log.Printf("[ratelimit] store write failed for %s: %v", storeKey, err)
	}
}
