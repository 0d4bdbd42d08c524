package gsc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/searchlens/backend/internal/cache"
)

// ResponseCache holds upstream API payloads with a TTL. Entries embed their
// own expiry so a read can reject anything the backing store should already
// have dropped (clock skew, store TTL granularity).
type ResponseCache struct {
	store cache.Store
	now   func() time.Time
}

// cacheEntry is the stored envelope.
type cacheEntry struct {
	Payload   json.RawMessage `json:"payload"`
	ExpiresAt int64           `json:"expires_at"`
}

// NewResponseCache creates a response cache over the shared key-value store.
func NewResponseCache(store cache.Store) *ResponseCache {
	return &ResponseCache{
		store: store,
		now:   time.Now,
	}
}

// CacheKey builds the deterministic key for (user, operation, params).
// Parameters are sorted by name so argument order never splits semantically
// identical requests across entries.
func CacheKey(userID, operation string, params map[string]string) string {
	var b strings.Builder
	b.WriteString("gsc:")
	b.WriteString(userID)
	b.WriteString(":")
	b.WriteString(operation)

	if len(params) == 0 {
		return b.String()
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString(":")
	for i, name := range names {
		if i > 0 {
			b.WriteString("|")
		}
		fmt.Fprintf(&b, "%s:%s", name, params[name])
	}

	return b.String()
}

// Get returns the cached payload, or nil on a miss. A stored entry past its
// own expiry is removed and reported as a miss.
func (c *ResponseCache) Get(ctx context.Context, key string) json.RawMessage {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if err != cache.ErrCacheMiss {
			log.Printf("[gsc] response cache read failed for %s: %v", key, err)
		}
		return nil
	}

	var entry cacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		// Corrupt entry; drop it.
		c.store.Delete(ctx, key)
		return nil
	}

	if c.now().Unix() >= entry.ExpiresAt {
		c.store.Delete(ctx, key)
		return nil
	}

	return entry.Payload
}

// Set stores a payload for ttl. The backing store TTL is padded slightly so
// the embedded expiry governs visibility.
func (c *ResponseCache) Set(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) {
	entry := cacheEntry{
		Payload:   payload,
		ExpiresAt: c.now().Add(ttl).Unix(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	if err := c.store.Set(ctx, key, string(data), ttl+time.Second); err != nil {
		log.Printf("[gsc] response cache write failed for %s: %v", key, err)
	}
}
