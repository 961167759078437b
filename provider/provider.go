// Package provider defines the byte store used by contentcache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation). The Node services read the same Redis
// keys, so cached payloads stay plain codec output.
//
// Keys(pattern) uses Redis glob syntax (*, ?, [...]). Local providers match with
// path.Match, which treats '/' as a separator; cache keys never contain it.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs and key enumeration.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Keys lists live keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Close releases resources.
	Close(ctx context.Context) error
}
