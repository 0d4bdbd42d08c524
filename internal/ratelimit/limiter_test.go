package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlens/backend/internal/cache"
)

func newTestLimiter(store cache.Store, at time.Time) *Limiter {
	l := NewLimiter(store)
	l.now = func() time.Time { return at }
	return l
}

func TestCheckCountsDownThenLimits(t *testing.T) {
	ctx := context.Background()
	l := newTestLimiter(cache.NewMemory(), time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	first := l.Check(ctx, "rate_limit:gsc:u1:listSites", 2, 60)
	require.False(t, first.Limited)
	assert.Equal(t, 1, first.Remaining)

	second := l.Check(ctx, "rate_limit:gsc:u1:listSites", 2, 60)
	require.False(t, second.Limited)
	assert.Equal(t, 0, second.Remaining)

	third := l.Check(ctx, "rate_limit:gsc:u1:listSites", 2, 60)
	assert.True(t, third.Limited)
	assert.Equal(t, 0, third.Remaining)
	assert.Equal(t, first.ResetAt, third.ResetAt)
}

func TestCheckKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	l := newTestLimiter(cache.NewMemory(), time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	l.Check(ctx, "rate_limit:gsc:u1:listSites", 1, 60)
	blocked := l.Check(ctx, "rate_limit:gsc:u1:listSites", 1, 60)
	require.True(t, blocked.Limited)

	other := l.Check(ctx, "rate_limit:gsc:u2:listSites", 1, 60)
	assert.False(t, other.Limited)
}

func TestCheckWindowRollover(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	l := newTestLimiter(store, start)
	l.Check(ctx, "k", 1, 60)
	require.True(t, l.Check(ctx, "k", 1, 60).Limited)

	// Next fixed window: the counter starts over.
	l.now = func() time.Time { return start.Add(61 * time.Second) }
	res := l.Check(ctx, "k", 1, 60)
	assert.False(t, res.Limited)
}

func TestCheckBoundaryCountsAsFresh(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	at := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	l := newTestLimiter(store, at)

	// A stored window whose reset_at equals now must behave as expired even
	// when the store has not evicted it yet.
	windowIndex := at.Unix() / 60
	storeKey := "k:" + strconv.FormatInt(windowIndex, 10)
	stale := `{"count":1,"reset_at":` + strconv.FormatInt(at.Unix(), 10) + `}`
	require.NoError(t, store.Set(ctx, storeKey, stale, time.Minute))

	res := l.Check(ctx, "k", 1, 60)
	assert.False(t, res.Limited)
	assert.Equal(t, 0, res.Remaining)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func (failingStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}

func (failingStore) Delete(context.Context, ...string) error {
	return errors.New("connection refused")
}

func TestCheckFailsOpenOnStorageError(t *testing.T) {
	l := NewLimiter(failingStore{})

	res := l.Check(context.Background(), "k", 5, 60)
	assert.False(t, res.Limited)
	assert.Equal(t, 5, res.Remaining)
}

func TestCheckCorruptCounterTreatedAsFresh(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(store, at)

	windowIndex := at.Unix() / 60
	storeKey := "k:" + strconv.FormatInt(windowIndex, 10)
	require.NoError(t, store.Set(ctx, storeKey, "not json", time.Minute))

	res := l.Check(ctx, "k", 3, 60)
	assert.False(t, res.Limited)
	assert.Equal(t, 2, res.Remaining)
}
