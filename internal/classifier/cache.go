package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "classify:"

// Cached wraps a classifier with a Redis lookaside cache keyed by a
// hash of the message text. Identical messages classify the same way,
// so repeat submissions skip the model call entirely.
type Cached struct {
	inner  Classifier
	client *redis.Client
	ttl    time.Duration
}

// NewCached builds the caching wrapper. A nil client disables caching.
func NewCached(inner Classifier, client *redis.Client, ttl time.Duration) *Cached {
	return &Cached{inner: inner, client: client, ttl: ttl}
}

// Classify returns the cached result when present, otherwise delegates
// and stores the answer. Cache failures are ignored; the cache is an
// optimization, never a dependency.
func (c *Cached) Classify(ctx context.Context, text string) (Classification, error) {
	if c.client == nil {
		return c.inner.Classify(ctx, text)
	}

	key := cacheKey(text)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var cached Classification
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	result, err := c.inner.Classify(ctx, text)
	if err != nil {
		return Classification{}, err
	}

	if raw, err := json.Marshal(result); err == nil {
		c.client.Set(ctx, key, raw, c.ttl)
	}
	return result, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
