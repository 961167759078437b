package contentcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/contentcache/codec"
	gen "github.com/unkn0wn-root/contentcache/genstore"
	pr "github.com/unkn0wn-root/contentcache/provider"
)

// SetCostFunc weighs a cache write for cost-aware providers (ristretto).
type SetCostFunc func(key string, raw []byte) int64

// Reader is the cache-aside read path plus the invalidation entry points the write
// path calls after a successful mutation.
type Reader interface {
	Enabled() bool
	Close(context.Context) error

	// List returns one page, newest first. q must satisfy q.Validate().
	List(ctx context.Context, q ListQuery) (Envelope[ListMeta], error)
	// ByID returns ok=false (and no error) when the store has no such item.
	ByID(ctx context.Context, id string) (item ContentItem, ok bool, err error)
	// Today returns items created on the current calendar day of Options.Location.
	Today(ctx context.Context) (Envelope[TodayMeta], error)

	Invalidator
}

// Invalidator clears cached reads. Failures are logged and never returned.
type Invalidator interface {
	// InvalidateAll drops every list:*, doc:* and today entry.
	InvalidateAll(ctx context.Context)
	// InvalidateOne drops doc:<id> only.
	InvalidateOne(ctx context.Context, id string)
}

// Options tune the reader. Store is always required; Provider is required unless
// Disabled is set.
type Options struct {
	Provider pr.Provider
	Store    Store

	Namespace       string   // optional key prefix, e.g. "app:prod" => "app:prod:doc:<id>"
	Codec           c.Format // "" => JSON
	MaxPayloadBytes int      // > 0 rejects larger cached payloads on read

	ListTTL  time.Duration // 0 => 60s
	DocTTL   time.Duration // 0 => 5m
	TodayTTL time.Duration // 0 => 60s

	Location *time.Location   // calendar for Today; nil => Asia/Kolkata
	Now      func() time.Time // nil => time.Now

	Logger         Logger       // if nil, NopLogger is used
	Hooks          Hooks        // if nil, NopHooks is used
	Fence          gen.GenStore // nil => writes are not fenced against invalidation
	ComputeSetCost SetCostFunc  // default len(raw)
	Disabled       bool         // bypass the cache; every read goes to the store
}

func New(opts Options) (Reader, error) {
	return newReader(opts)
}
