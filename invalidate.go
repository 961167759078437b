package contentcache

import (
	"context"
	"errors"
)

// InvalidateAll bumps the "all" fence, then deletes every key in the list:*, doc:*
// and today families. Keys are discovered with provider.Keys rather than tracked.
func (r *reader) InvalidateAll(ctx context.Context) {
	if !r.enabled {
		return
	}
	r.bump(ctx, fenceAll)

	var (
		keys    []string
		scanErr error
	)
	for _, pattern := range []string{r.storageKey(listPrefix + "*"), r.storageKey(docPrefix + "*")} {
		found, err := r.provider.Keys(ctx, pattern)
		if err != nil {
			scanErr = errors.Join(scanErr, err)
			continue
		}
		keys = append(keys, found...)
	}
	keys = append(keys, r.storageKey(todayKey))

	if err := r.provider.Del(ctx, keys...); err != nil || scanErr != nil {
		r.invalidateFailed(&InvalidateError{Scope: "all", ScanErr: scanErr, DelErr: err})
		return
	}
	r.log.Debug("invalidated all content keys", Fields{"deleted": len(keys)})
}

// InvalidateOne drops doc:<id> only. List pages and today keep serving their cached
// copy of the item until they expire or InvalidateAll runs.
func (r *reader) InvalidateOne(ctx context.Context, id string) {
	if !r.enabled {
		return
	}
	key := Key(ByIDQuery{ID: id})
	r.bump(ctx, key)
	if err := r.provider.Del(ctx, r.storageKey(key)); err != nil {
		r.invalidateFailed(&InvalidateError{Scope: key, DelErr: err})
		return
	}
	r.log.Debug("invalidated key", Fields{"key": key})
}

func (r *reader) bump(ctx context.Context, fenceKey string) {
	if r.fence == nil {
		return
	}
	if _, err := r.fence.Bump(ctx, fenceKey); err != nil {
		// Del below still runs; only the stale-write guard is lost for this round.
		r.log.Error("fence bump failed", Fields{"key": fenceKey, "err": err})
	}
}

func (r *reader) invalidateFailed(err *InvalidateError) {
	r.log.Error("cache invalidation failed; entries live until TTL", Fields{"scope": err.Scope, "err": err})
	r.hooks.InvalidateFailed(err)
}
