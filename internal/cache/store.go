package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Store.Get when the key does not exist or has expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Store is the key-value capability shared by the token cache, the response
// cache, and the rate limiter. Each consumer owns its own key namespace and
// TTL policy.
type Store interface {
	// Get retrieves a value. Returns ErrCacheMiss if the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with an expiration. A zero expiration means no TTL.
	Set(ctx context.Context, key string, value string, expiration time.Duration) error

	// Delete removes keys. Deleting a missing key is not an error.
	Delete(ctx context.Context, keys ...string) error
}
