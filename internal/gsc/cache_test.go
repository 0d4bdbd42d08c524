package gsc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlens/backend/internal/cache"
)

func TestCacheKeyDeterministic(t *testing.T) {
	a := CacheKey("u1", OpSearchAnalytics, map[string]string{
		"siteUrl":   "https://example.com/",
		"startDate": "2025-05-01",
		"endDate":   "2025-05-31",
	})
	b := CacheKey("u1", OpSearchAnalytics, map[string]string{
		"endDate":   "2025-05-31",
		"startDate": "2025-05-01",
		"siteUrl":   "https://example.com/",
	})

	assert.Equal(t, a, b)
	assert.Equal(t,
		"gsc:u1:searchAnalytics:endDate:2025-05-31|siteUrl:https://example.com/|startDate:2025-05-01",
		a)
}

func TestCacheKeyNoParams(t *testing.T) {
	assert.Equal(t, "gsc:u1:listSites", CacheKey("u1", OpListSites, nil))
}

func TestCacheKeyDistinguishesUsers(t *testing.T) {
	params := map[string]string{"siteUrl": "https://example.com/"}
	assert.NotEqual(t,
		CacheKey("u1", OpSearchAnalytics, params),
		CacheKey("u2", OpSearchAnalytics, params))
}

func TestResponseCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	rc := NewResponseCache(cache.NewMemory())

	payload := json.RawMessage(`{"rows":[{"keys":["go modules"]}]}`)
	rc.Set(ctx, "gsc:u1:listSites", payload, time.Hour)

	got := rc.Get(ctx, "gsc:u1:listSites")
	require.NotNil(t, got)
	assert.JSONEq(t, string(payload), string(got))
}

func TestResponseCacheMiss(t *testing.T) {
	rc := NewResponseCache(cache.NewMemory())
	assert.Nil(t, rc.Get(context.Background(), "gsc:u1:listSites"))
}

func TestResponseCacheExpiry(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rc := NewResponseCache(cache.NewMemory())
	rc.now = func() time.Time { return clock }

	rc.Set(ctx, "k", json.RawMessage(`{"ok":true}`), 10*time.Minute)
	require.NotNil(t, rc.Get(ctx, "k"))

	// The embedded expiry governs even when the store still has the entry.
	clock = clock.Add(10 * time.Minute)
	assert.Nil(t, rc.Get(ctx, "k"))
}

func TestResponseCacheCorruptEntryDropped(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	rc := NewResponseCache(store)

	require.NoError(t, store.Set(ctx, "k", "not an envelope", time.Hour))
	assert.Nil(t, rc.Get(ctx, "k"))

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
