package gsc

import (
	"context"
	"fmt"
	"time"

	"github.com/searchlens/backend/internal/cache"
)

// tokenCacheTTLMargin is shaved off the provider-declared expiry so a token
// read near the end of its lifetime is still usable for the upstream call.
const tokenCacheTTLMargin = 30 * time.Second

// TokenCache maps a user id to their short-lived Search Console access token.
// The backing store expires entries at the provider-declared TTL; a miss
// always means "must refresh".
type TokenCache struct {
	store cache.Store
}

// NewTokenCache creates a token cache over the shared key-value store.
func NewTokenCache(store cache.Store) *TokenCache {
	return &TokenCache{store: store}
}

func tokenKey(userID string) string {
	return fmt.Sprintf("gsc:token:%s", userID)
}

// Get returns the cached access token, or "" on a miss.
func (c *TokenCache) Get(ctx context.Context, userID string) (string, error) {
	token, err := c.store.Get(ctx, tokenKey(userID))
	if err != nil {
		if err == cache.ErrCacheMiss {
			return "", nil
		}
		return "", err
	}
	return token, nil
}

// Set stores an access token with the provider-declared expiry.
func (c *TokenCache) Set(ctx context.Context, userID, token string, expiresIn time.Duration) error {
	ttl := expiresIn - tokenCacheTTLMargin
	if ttl <= 0 {
		ttl = expiresIn
	}
	return c.store.Set(ctx, tokenKey(userID), token, ttl)
}

// Evict removes the cached token, forcing the next read to refresh.
func (c *TokenCache) Evict(ctx context.Context, userID string) error {
	return c.store.Delete(ctx, tokenKey(userID))
}
