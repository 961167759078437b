package contentcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Kolkata must resolve on hosts without a zoneinfo database

	"golang.org/x/sync/errgroup"

	c "github.com/unkn0wn-root/contentcache/codec"
	gen "github.com/unkn0wn-root/contentcache/genstore"
	pr "github.com/unkn0wn-root/contentcache/provider"
)

const fenceAll = "all"

// errIncompatible marks a cached payload that decoded but does not answer the
// query it is keyed under: null, an older layout, or another writer's shape.
var errIncompatible = errors.New("contentcache: incompatible cached payload")

type reader struct {
	ns       string
	provider pr.Provider
	store    Store
	log      Logger
	hooks    Hooks
	fence    gen.GenStore
	enabled  bool

	listTTL  time.Duration
	docTTL   time.Duration
	todayTTL time.Duration
	loc      *time.Location
	now      func() time.Time
	setCost  SetCostFunc

	listCodec  c.Codec[Envelope[ListMeta]]
	docCodec   c.Codec[ContentItem]
	todayCodec c.Codec[Envelope[TodayMeta]]
}

func newReader(opts Options) (*reader, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("contentcache: store is required")
	}
	if opts.Provider == nil && !opts.Disabled {
		return nil, fmt.Errorf("contentcache: provider is required")
	}
	// the namespace is spliced into Keys patterns; a metacharacter would widen them
	if strings.ContainsAny(opts.Namespace, `*?[]\`) {
		return nil, fmt.Errorf("contentcache: namespace %q contains glob metacharacters", opts.Namespace)
	}

	r := &reader{
		ns:       opts.Namespace,
		provider: opts.Provider,
		store:    opts.Store,
		fence:    opts.Fence,
		enabled:  !opts.Disabled,
	}

	// defaults
	r.log = coalesce[Logger](opts.Logger, NopLogger{})
	r.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	r.listTTL = coalesce(opts.ListTTL, defaultListTTL)
	r.docTTL = coalesce(opts.DocTTL, defaultDocTTL)
	r.todayTTL = coalesce(opts.TodayTTL, defaultTodayTTL)

	r.loc = opts.Location
	if r.loc == nil {
		loc, err := time.LoadLocation(DefaultLocation)
		if err != nil {
			return nil, fmt.Errorf("contentcache: load location: %w", err)
		}
		r.loc = loc
	}
	r.now = opts.Now
	if r.now == nil {
		r.now = time.Now
	}
	r.setCost = opts.ComputeSetCost
	if r.setCost == nil {
		r.setCost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}

	var err error
	if r.listCodec, err = c.For[Envelope[ListMeta]](opts.Codec, opts.MaxPayloadBytes); err != nil {
		return nil, fmt.Errorf("contentcache: %w", err)
	}
	if r.docCodec, err = c.For[ContentItem](opts.Codec, opts.MaxPayloadBytes); err != nil {
		return nil, fmt.Errorf("contentcache: %w", err)
	}
	if r.todayCodec, err = c.For[Envelope[TodayMeta]](opts.Codec, opts.MaxPayloadBytes); err != nil {
		return nil, fmt.Errorf("contentcache: %w", err)
	}
	return r, nil
}

func (r *reader) Enabled() bool { return r.enabled }

func (r *reader) Close(ctx context.Context) error {
	// fence first (best effort)
	if r.fence != nil {
		_ = r.fence.Close(ctx)
	}
	if r.provider != nil {
		return r.provider.Close(ctx)
	}
	return nil
}

func (r *reader) List(ctx context.Context, q ListQuery) (Envelope[ListMeta], error) {
	if err := q.Validate(); err != nil {
		return Envelope[ListMeta]{}, err
	}
	env, _, err := readThrough(ctx, r, Key(q), r.listCodec, r.listTTL, []string{fenceAll},
		func(env Envelope[ListMeta]) error {
			if env.Meta.Page != q.Page || env.Meta.Limit != q.Limit {
				return fmt.Errorf("%w: list meta %d/%d for page %d limit %d",
					errIncompatible, env.Meta.Page, env.Meta.Limit, q.Page, q.Limit)
			}
			if len(env.Data) > q.Limit {
				return fmt.Errorf("%w: list holds %d items", errIncompatible, len(env.Data))
			}
			return nil
		},
		func(ctx context.Context) (Envelope[ListMeta], bool, error) {
			var (
				items []ContentItem
				total int
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				if items, err = r.store.FindPage(gctx, q.Skip(), q.Limit); err != nil {
					return &StoreError{Op: "list", Err: err}
				}
				return nil
			})
			g.Go(func() error {
				var err error
				if total, err = r.store.Count(gctx); err != nil {
					return &StoreError{Op: "count", Err: err}
				}
				return nil
			})
			if err := g.Wait(); err != nil {
				return Envelope[ListMeta]{}, false, err
			}
			if len(items) > q.Limit {
				items = items[:q.Limit]
			}
			return Envelope[ListMeta]{
				Data: normalizeIDs(items),
				Meta: ListMeta{Page: q.Page, Limit: q.Limit, Total: total},
			}, true, nil
		})
	return env, err
}

func (r *reader) ByID(ctx context.Context, id string) (ContentItem, bool, error) {
	if strings.TrimSpace(id) == "" {
		return ContentItem{}, false, fmt.Errorf("%w: empty id", ErrInvalidQuery)
	}
	q := ByIDQuery{ID: id}
	return readThrough(ctx, r, Key(q), r.docCodec, r.docTTL, []string{fenceAll, Key(q)},
		func(it ContentItem) error {
			// ObjectID hex is case-insensitive; the store answers in lower case
			if it.ID == "" || !strings.EqualFold(it.ID, id) {
				return fmt.Errorf("%w: doc id %q for %q", errIncompatible, it.ID, id)
			}
			return nil
		},
		func(ctx context.Context) (ContentItem, bool, error) {
			it, ok, err := r.store.FindByID(ctx, id)
			if err != nil {
				return ContentItem{}, false, &StoreError{Op: "by_id", Err: err}
			}
			if !ok {
				// absence is not cached: the item may be created later
				return ContentItem{}, false, nil
			}
			return normalizeID(it), true, nil
		})
}

func (r *reader) Today(ctx context.Context) (Envelope[TodayMeta], error) {
	env, _, err := readThrough(ctx, r, Key(TodayQuery{}), r.todayCodec, r.todayTTL, []string{fenceAll},
		func(env Envelope[TodayMeta]) error {
			if _, err := time.Parse(time.DateOnly, env.Meta.Date); err != nil || env.Meta.Total != len(env.Data) {
				return fmt.Errorf("%w: today meta %+v with %d items", errIncompatible, env.Meta, len(env.Data))
			}
			return nil
		},
		func(ctx context.Context) (Envelope[TodayMeta], bool, error) {
			from, to := DayWindow(r.now(), r.loc)
			items, err := r.store.FindCreatedBetween(ctx, from, to)
			if err != nil {
				return Envelope[TodayMeta]{}, false, &StoreError{Op: "today", Err: err}
			}
			return Envelope[TodayMeta]{
				Data: normalizeIDs(items),
				Meta: TodayMeta{Date: from.In(r.loc).Format(time.DateOnly), Total: len(items)},
			}, true, nil
		})
	return env, err
}

// DayWindow returns the UTC bounds [00:00:00.000, 23:59:59.999] of the calendar day
// that contains now in loc.
func DayWindow(now time.Time, loc *time.Location) (from, to time.Time) {
	y, m, d := now.In(loc).Date()
	from = time.Date(y, m, d, 0, 0, 0, 0, loc)
	to = time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
	return from.UTC(), to.UTC()
}

// readThrough is the cache-aside algorithm shared by every query shape:
// cache get -> (miss) store load -> cache set -> return. Cache failures never
// surface; load errors always do. accept vets a decoded payload; a payload that
// decodes but fails it is treated like a corrupt one.
func readThrough[V any](
	ctx context.Context,
	r *reader,
	key string,
	codec c.Codec[V],
	ttl time.Duration,
	fenceKeys []string,
	accept func(V) error,
	load func(context.Context) (V, bool, error),
) (V, bool, error) {
	sk := r.storageKey(key)
	if v, ok := cacheGet(ctx, r, sk, codec, accept); ok {
		return v, true, nil
	}

	obs, fenced := r.snapshot(ctx, fenceKeys)
	v, found, err := load(ctx)
	if err != nil {
		r.log.Error("store query failed", Fields{"key": key, "err": err})
		return v, false, err
	}
	if !found {
		return v, false, nil
	}
	if fenced {
		cachePut(ctx, r, sk, codec, v, ttl, fenceKeys, obs)
	}
	return v, true, nil
}

func cacheGet[V any](ctx context.Context, r *reader, sk string, codec c.Codec[V], accept func(V) error) (V, bool) {
	var zero V
	if !r.enabled {
		return zero, false
	}
	raw, ok, err := r.provider.Get(ctx, sk)
	if err != nil {
		r.log.Warn("cache read failed; serving from store", Fields{"key": sk, "err": err})
		r.hooks.CacheReadError(sk, err)
		return zero, false
	}
	if !ok {
		r.log.Debug("cache miss", Fields{"key": sk})
		return zero, false
	}
	v, err := codec.Decode(raw)
	if err == nil {
		err = accept(v)
	}
	if err != nil {
		r.log.Warn("cached payload rejected; serving from store", Fields{"key": sk, "err": err, "bytes": len(raw)})
		r.hooks.PayloadRejected(sk, err)
		_ = r.provider.Del(ctx, sk) // self-heal
		return zero, false
	}
	r.log.Debug("cache hit", Fields{"key": sk})
	return v, true
}

func cachePut[V any](
	ctx context.Context,
	r *reader,
	sk string,
	codec c.Codec[V],
	v V,
	ttl time.Duration,
	fenceKeys []string,
	obs map[string]uint64,
) {
	raw, err := codec.Encode(v)
	if err != nil {
		r.log.Warn("cache encode failed", Fields{"key": sk, "err": err})
		r.hooks.CacheWriteError(sk, err)
		return
	}
	if !r.fenceHolds(ctx, fenceKeys, obs) {
		// an invalidation ran while the store was queried; v may predate it
		r.log.Debug("cache write skipped (generation moved)", Fields{"key": sk})
		r.hooks.StaleWriteSkipped(sk)
		return
	}
	ok, err := r.provider.Set(ctx, sk, raw, r.setCost(sk, raw), ttl)
	if err != nil {
		r.log.Warn("cache write failed", Fields{"key": sk, "err": err})
		r.hooks.CacheWriteError(sk, err)
		return
	}
	if !ok {
		r.log.Debug("cache write rejected by provider (pressure)", Fields{"key": sk})
	}
}

// snapshot captures fence generations before a store query. fenced=false means the
// result must not be cached (cache disabled, or the fence could not be read).
func (r *reader) snapshot(ctx context.Context, keys []string) (obs map[string]uint64, fenced bool) {
	if !r.enabled {
		return nil, false
	}
	if r.fence == nil {
		return nil, true
	}
	obs, err := r.fence.SnapshotMany(ctx, keys)
	if err != nil {
		r.log.Warn("fence snapshot failed; result will not be cached", Fields{"keys": keys, "err": err})
		r.hooks.CacheReadError(strings.Join(keys, ","), err)
		return nil, false
	}
	return obs, true
}

func (r *reader) fenceHolds(ctx context.Context, keys []string, obs map[string]uint64) bool {
	if r.fence == nil {
		return true
	}
	cur, err := r.fence.SnapshotMany(ctx, keys)
	if err != nil {
		r.log.Warn("fence check failed; skipping cache write", Fields{"keys": keys, "err": err})
		return false
	}
	for _, k := range keys {
		if cur[k] != obs[k] {
			return false
		}
	}
	return true
}

func (r *reader) storageKey(key string) string {
	if r.ns == "" {
		return key
	}
	return r.ns + ":" + key
}
