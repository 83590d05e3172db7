// Package cache keeps generated text, such as drug descriptions, in a bounded
// in-memory LRU with per-entry expiry.
package cache

import (
	"context"
	"time"
)

// CacheService defines the cache consumed by the description generator.
type CacheService interface {
	// Get retrieves a value and reports whether it was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value. A non-positive ttl uses the default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Stats reports cache effectiveness.
type Stats struct {
	Size   int   `json:"size"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}
