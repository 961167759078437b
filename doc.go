// Package contentcache implements a cache-aside read path for paginated content.
// Reads are served from a byte cache (Redis in production) keyed by query shape and
// fall back to the backing store on miss. Writes clear the cache explicitly.
//
// Components:
//   - Provider: byte store with TTL and key enumeration (Redis, BigCache, Ristretto).
//   - Codec[V]: (de)serializes cached envelopes. JSON by default.
//   - Store: backing store exposing the three query shapes (by id, page+count, range).
//   - GenStore (optional fence): generation counters bumped by invalidation so that a
//     read which raced an invalidation does not write its old answer back.
//
// Keys:
//
//	list:page:<P>:limit:<L>  - paginated list, newest first
//	doc:<ID>                 - single item
//	today                    - items created on the current Asia/Kolkata calendar day
//
// The today key is not date-parameterized. A cached today answer can outlive the
// day boundary until its TTL expires or an invalidation clears it.
//
// Failure policy:
//
//	cache error / corrupt payload -> logged, treated as a miss (reads) or skipped (writes)
//	store error                   -> returned to the caller as *StoreError
//	by-id with no record          -> ok=false, nothing cached
//
// Typical wiring:
//
//	r, _ := contentcache.New(contentcache.Options{
//	    Provider: redisProvider,
//	    Store:    mongoStore,
//	    ListTTL:  time.Minute,
//	})
//	page, err := r.List(ctx, contentcache.ListQuery{Page: 1, Limit: 20})
//	...
//	r.InvalidateAll(ctx) // after a create/delete on the write path
package contentcache
