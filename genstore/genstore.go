// Package genstore holds generation counters used as an invalidation fence.
//
// contentcache bumps a counter on every invalidation and snapshots the counters
// before a store query. A read whose snapshot no longer matches after the query
// raced an invalidation, and its result is not written back to the cache.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// LocalGenStore fences a single process; RedisGenStore fences every replica sharing
// the Redis instance.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// SnapshotMany returns gens for many keys; missing => 0.
	SnapshotMany(ctx context.Context, keys []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, key string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	Close(context.Context) error
}
