package contentcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	c "github.com/unkn0wn-root/contentcache/codec"
	gen "github.com/unkn0wn-root/contentcache/genstore"
)

// ==============================
// List
// ==============================

func TestListMetaMatchesQuery(t *testing.T) {
	ctx := context.Background()
	s := seededStore(7)
	r := newTestReader(t, newMemProvider(), s, nil)

	for _, q := range []ListQuery{{1, 1}, {1, 3}, {2, 3}, {3, 3}, {4, 3}, {1, 100}} {
		env, err := r.List(ctx, q)
		if err != nil {
			t.Fatalf("List(%+v): %v", q, err)
		}
		if env.Meta.Page != q.Page || env.Meta.Limit != q.Limit {
			t.Fatalf("List(%+v) meta = %+v", q, env.Meta)
		}
		if len(env.Data) > q.Limit {
			t.Fatalf("List(%+v) returned %d items", q, len(env.Data))
		}
		if env.Meta.Total != 7 {
			t.Fatalf("List(%+v) total = %d, want 7", q, env.Meta.Total)
		}
	}
}

func TestListPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := seededStore(5)
	r := newTestReader(t, newMemProvider(), s, nil)

	p1, err := r.List(ctx, ListQuery{Page: 1, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	p3, err := r.List(ctx, ListQuery{Page: 3, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(ids(p1.Data), ","); got != fmt.Sprintf("%024x,%024x", 5, 4) {
		t.Fatalf("page 1 = %s", got)
	}
	if got := strings.Join(ids(p3.Data), ","); got != fmt.Sprintf("%024x", 1) {
		t.Fatalf("page 3 = %s", got)
	}
}

func TestListIdempotentSecondCallFromCache(t *testing.T) {
	ctx := context.Background()
	s := seededStore(3)
	mp := newMemProvider()
	r := newTestReader(t, mp, s, nil)

	q := ListQuery{Page: 1, Limit: 20}
	first, err := r.List(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.List(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("envelopes differ:\n%s\n%s", a, b)
	}
	if s.page.Load() != 1 || s.count.Load() != 1 {
		t.Fatalf("store queried page=%d count=%d times, want 1/1", s.page.Load(), s.count.Load())
	}
	if !mp.has("list:page:1:limit:20") {
		t.Fatalf("list entry not written under its list:page key")
	}
}

func TestListRejectsOutOfRangeBeforeStore(t *testing.T) {
	ctx := context.Background()
	s := seededStore(3)
	mp := newMemProvider()
	r := newTestReader(t, mp, s, nil)

	for _, q := range []ListQuery{{0, 20}, {-1, 20}, {1, 0}, {1, 101}} {
		if _, err := r.List(ctx, q); !errors.Is(err, ErrInvalidQuery) {
			t.Fatalf("List(%+v): expected ErrInvalidQuery, got %v", q, err)
		}
	}
	if s.queries() != 0 || mp.gets.Load() != 0 {
		t.Fatalf("invalid queries reached store (%d) or cache (%d)", s.queries(), mp.gets.Load())
	}
}

// ==============================
// Cache hit short-circuit
// ==============================

func TestCacheHitNeverQueriesStore(t *testing.T) {
	ctx := context.Background()
	s := seededStore(3)
	r := newTestReader(t, newMemProvider(), s, func(o *Options) {
		o.Now = func() time.Time { return t0.Add(time.Hour) }
	})
	id := fmt.Sprintf("%024x", 2)

	if _, err := r.List(ctx, ListQuery{Page: 1, Limit: 20}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.ByID(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Today(ctx); err != nil {
		t.Fatal(err)
	}
	before := s.queries()

	for i := 0; i < 3; i++ {
		if _, err := r.List(ctx, ListQuery{Page: 1, Limit: 20}); err != nil {
			t.Fatal(err)
		}
		it, ok, err := r.ByID(ctx, id)
		if err != nil || !ok || it.ID != id {
			t.Fatalf("ByID hit: it=%+v ok=%v err=%v", it, ok, err)
		}
		if _, err := r.Today(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if after := s.queries(); after != before {
		t.Fatalf("cache hits queried the store: before=%d after=%d", before, after)
	}
}

// ==============================
// By id
// ==============================

func TestByIDNormalizesIDAndCaches(t *testing.T) {
	ctx := context.Background()
	s := seededStore(2)
	mp := newMemProvider()
	r := newTestReader(t, mp, s, nil)
	id := fmt.Sprintf("%024x", 1)

	it, ok, err := r.ByID(ctx, id)
	if err != nil || !ok {
		t.Fatalf("ByID: ok=%v err=%v", ok, err)
	}
	if it.ID != id || it.NativeID != id {
		t.Fatalf("ids not normalized: %+v", it)
	}
	raw, ok, _ := mp.Get(ctx, "doc:"+id)
	if !ok {
		t.Fatalf("doc entry missing")
	}
	if !strings.Contains(string(raw), `"_id":"`+id+`"`) || !strings.Contains(string(raw), `"id":"`+id+`"`) {
		t.Fatalf("cached payload lacks _id/id: %s", raw)
	}
}

func TestByIDNotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	s := seededStore(1)
	mp := newMemProvider()
	r := newTestReader(t, mp, s, nil)
	missing := fmt.Sprintf("%024x", 99)

	for i := 0; i < 2; i++ {
		it, ok, err := r.ByID(ctx, missing)
		if err != nil || ok {
			t.Fatalf("expected not found, got it=%+v ok=%v err=%v", it, ok, err)
		}
	}
	if s.byID.Load() != 2 {
		t.Fatalf("absence was cached: store hits = %d", s.byID.Load())
	}
	if mp.has("doc:" + missing) {
		t.Fatalf("absence written to cache")
	}

	// created later -> visible without waiting for a TTL
	_, _ = s.Create(ctx, itemAt(missing, t0))
	if _, ok, _ := r.ByID(ctx, missing); !ok {
		t.Fatalf("item created after a miss should be found")
	}
}

func TestByIDRejectsEmptyID(t *testing.T) {
	r := newTestReader(t, newMemProvider(), seededStore(1), nil)
	if _, _, err := r.ByID(context.Background(), "  "); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

// ==============================
// Today
// ==============================

func TestTodayUsesKolkataCalendarDay(t *testing.T) {
	ctx := context.Background()
	// 2024-03-10 20:00 UTC is 2024-03-11 01:30 IST: the day runs
	// 2024-03-10T18:30:00Z .. 2024-03-11T18:29:59.999Z.
	now := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
	s := &countingStore{items: []ContentItem{
		itemAt("before", time.Date(2024, 3, 10, 18, 29, 59, 0, time.UTC)),
		itemAt("first", time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC)),
		itemAt("last", time.Date(2024, 3, 11, 18, 29, 59, int(999*time.Millisecond), time.UTC)),
		itemAt("after", time.Date(2024, 3, 11, 18, 30, 0, 0, time.UTC)),
	}}
	mp := newMemProvider()
	r := newTestReader(t, mp, s, func(o *Options) { o.Now = func() time.Time { return now } })

	env, err := r.Today(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(ids(env.Data), ","); got != "last,first" {
		t.Fatalf("today = %s", got)
	}
	if env.Meta.Date != "2024-03-11" || env.Meta.Total != 2 {
		t.Fatalf("meta = %+v", env.Meta)
	}
	if !mp.has("today") {
		t.Fatalf("today entry not cached under literal key")
	}
}

func TestDayWindow(t *testing.T) {
	ist, err := time.LoadLocation(DefaultLocation)
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		now      time.Time
		from, to string
	}{
		{time.Date(2024, 3, 10, 18, 29, 0, 0, time.UTC), "2024-03-09T18:30:00Z", "2024-03-10T18:29:59.999Z"},
		{time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC), "2024-03-10T18:30:00Z", "2024-03-11T18:29:59.999Z"},
		{time.Date(2024, 12, 31, 19, 0, 0, 0, time.UTC), "2024-12-31T18:30:00Z", "2025-01-01T18:29:59.999Z"},
	}
	for _, tc := range cases {
		from, to := DayWindow(tc.now, ist)
		if got := from.Format(time.RFC3339Nano); got != tc.from {
			t.Fatalf("DayWindow(%s) from = %s, want %s", tc.now, got, tc.from)
		}
		if got := to.Format(time.RFC3339Nano); got != tc.to {
			t.Fatalf("DayWindow(%s) to = %s, want %s", tc.now, got, tc.to)
		}
	}
}

// ==============================
// Degradation
// ==============================

func TestReadsSurviveCacheOutage(t *testing.T) {
	ctx := context.Background()
	s := seededStore(3)
	hooks := &recordingHooks{}
	r := newTestReader(t, downProvider{}, s, func(o *Options) {
		o.Hooks = hooks
		o.Now = func() time.Time { return t0.Add(time.Hour) }
	})

	env, err := r.List(ctx, ListQuery{Page: 1, Limit: 2})
	if err != nil || len(env.Data) != 2 || env.Meta.Total != 3 {
		t.Fatalf("List under outage: env=%+v err=%v", env, err)
	}
	it, ok, err := r.ByID(ctx, fmt.Sprintf("%024x", 3))
	if err != nil || !ok || it.Title != "title "+fmt.Sprintf("%024x", 3) {
		t.Fatalf("ByID under outage: it=%+v ok=%v err=%v", it, ok, err)
	}
	today, err := r.Today(ctx)
	if err != nil || today.Meta.Total != 3 {
		t.Fatalf("Today under outage: env=%+v err=%v", today, err)
	}

	if len(hooks.readErrs) != 3 || len(hooks.writeErrs) != 3 {
		t.Fatalf("hooks: readErrs=%v writeErrs=%v", hooks.readErrs, hooks.writeErrs)
	}
}

func TestCorruptPayloadFallsThroughAndHeals(t *testing.T) {
	ctx := context.Background()
	s := seededStore(2)
	mp := newMemProvider()
	hooks := &recordingHooks{}
	r := newTestReader(t, mp, s, func(o *Options) { o.Hooks = hooks })

	mp.put("list:page:1:limit:20", []byte("{not json"))

	env, err := r.List(ctx, ListQuery{Page: 1, Limit: 20})
	if err != nil || len(env.Data) != 2 {
		t.Fatalf("List over corrupt entry: env=%+v err=%v", env, err)
	}
	if len(hooks.rejected) != 1 || hooks.rejected[0] != "list:page:1:limit:20" {
		t.Fatalf("PayloadRejected hooks = %v", hooks.rejected)
	}
	raw, ok, _ := mp.Get(ctx, "list:page:1:limit:20")
	if !ok || !json.Valid(raw) {
		t.Fatalf("entry not rewritten with a valid payload: %q", raw)
	}
}

func TestWrongShapePayloadIsAMiss(t *testing.T) {
	id := fmt.Sprintf("%024x", 1)
	cases := []struct {
		name string
		key  string
		raw  string
		read func(context.Context, Reader) (bool, error)
	}{
		{"null doc", "doc:" + id, `null`, func(ctx context.Context, r Reader) (bool, error) {
			it, ok, err := r.ByID(ctx, id)
			return ok && it.ID == id, err
		}},
		{"doc for another id", "doc:" + id, `{"id":"someone-else","title":"x"}`, func(ctx context.Context, r Reader) (bool, error) {
			it, ok, err := r.ByID(ctx, id)
			return ok && it.ID == id, err
		}},
		{"foreign list", "list:page:1:limit:20", `{"items":[1,2]}`, func(ctx context.Context, r Reader) (bool, error) {
			env, err := r.List(ctx, ListQuery{Page: 1, Limit: 20})
			return env.Meta.Page == 1 && env.Meta.Limit == 20 && env.Meta.Total == 2, err
		}},
		{"list for another page", "list:page:1:limit:20", `{"data":[],"meta":{"page":2,"limit":20,"total":9}}`, func(ctx context.Context, r Reader) (bool, error) {
			env, err := r.List(ctx, ListQuery{Page: 1, Limit: 20})
			return env.Meta.Page == 1 && env.Meta.Total == 2, err
		}},
		{"null today", "today", `null`, func(ctx context.Context, r Reader) (bool, error) {
			env, err := r.Today(ctx)
			return env.Meta.Date == "2024-03-10" && env.Meta.Total == 2, err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s := seededStore(2)
			mp := newMemProvider()
			hooks := &recordingHooks{}
			r := newTestReader(t, mp, s, func(o *Options) {
				o.Hooks = hooks
				o.Now = func() time.Time { return t0.Add(time.Hour) }
			})
			mp.put(tc.key, []byte(tc.raw))

			good, err := tc.read(ctx, r)
			if err != nil || !good {
				t.Fatalf("read over %s: good=%v err=%v", tc.raw, good, err)
			}
			if s.queries() == 0 {
				t.Fatalf("store was not queried")
			}
			if len(hooks.rejected) != 1 || hooks.rejected[0] != tc.key {
				t.Fatalf("PayloadRejected hooks = %v", hooks.rejected)
			}
			raw, _, _ := mp.Get(ctx, tc.key)
			if string(raw) == tc.raw {
				t.Fatalf("incompatible entry was not replaced")
			}
		})
	}
}

func TestFamiliesUseTheirOwnTTL(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	r := newTestReader(t, mp, seededStore(2), func(o *Options) {
		o.ListTTL = 11 * time.Second
		o.DocTTL = 22 * time.Second
		o.TodayTTL = 33 * time.Second
		o.Now = func() time.Time { return t0.Add(time.Hour) }
	})
	id := fmt.Sprintf("%024x", 1)

	_, _ = r.List(ctx, ListQuery{Page: 1, Limit: 20})
	_, _, _ = r.ByID(ctx, id)
	_, _ = r.Today(ctx)

	for key, want := range map[string]time.Duration{
		"list:page:1:limit:20": 11 * time.Second,
		"doc:" + id:            22 * time.Second,
		"today":                33 * time.Second,
	} {
		got, ok := mp.ttlOf(key)
		if !ok || got != want {
			t.Fatalf("%s written with ttl %v (present=%v), want %v", key, got, ok, want)
		}
	}
}

func TestOversizedPayloadRejected(t *testing.T) {
	ctx := context.Background()
	s := seededStore(1)
	mp := newMemProvider()
	hooks := &recordingHooks{}
	r := newTestReader(t, mp, s, func(o *Options) {
		o.Hooks = hooks
		o.MaxPayloadBytes = 64
	})
	id := fmt.Sprintf("%024x", 1)

	mp.put("doc:"+id, []byte(`{"id":"`+strings.Repeat("x", 128)+`"}`))
	it, ok, err := r.ByID(ctx, id)
	if err != nil || !ok || it.ID != id {
		t.Fatalf("ByID: it=%+v ok=%v err=%v", it, ok, err)
	}
	if len(hooks.rejected) != 1 {
		t.Fatalf("expected oversized payload to be rejected, hooks=%v", hooks.rejected)
	}
}

// ==============================
// Store errors
// ==============================

func TestStoreErrorPropagatesAndIsNotCached(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("mongo: server selection timeout")
	s := seededStore(1)
	s.err = boom
	mp := newMemProvider()
	r := newTestReader(t, mp, s, nil)

	_, err := r.List(ctx, ListQuery{Page: 1, Limit: 20})
	var se *StoreError
	if !errors.As(err, &se) || !errors.Is(err, boom) {
		t.Fatalf("List: expected StoreError wrapping boom, got %v", err)
	}
	if _, _, err := r.ByID(ctx, "x"); !errors.Is(err, boom) {
		t.Fatalf("ByID: expected boom, got %v", err)
	}
	if _, err := r.Today(ctx); !errors.Is(err, boom) {
		t.Fatalf("Today: expected boom, got %v", err)
	}
	if mp.sets.Load() != 0 {
		t.Fatalf("failed reads were cached")
	}
}

// ==============================
// Options
// ==============================

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{Provider: newMemProvider()}); err == nil {
		t.Fatalf("expected error without store")
	}
	if _, err := New(Options{Store: seededStore(0)}); err == nil {
		t.Fatalf("expected error without provider")
	}
	if _, err := New(Options{Store: seededStore(0), Disabled: true}); err != nil {
		t.Fatalf("disabled reader needs no provider: %v", err)
	}
	if _, err := New(Options{Store: seededStore(0), Provider: newMemProvider(), Codec: "gob"}); err == nil {
		t.Fatalf("expected unknown codec error")
	}
	for _, ns := range []string{"app*", "app:?", "app[1]", `app\x`} {
		if _, err := New(Options{Store: seededStore(0), Provider: newMemProvider(), Namespace: ns}); err == nil {
			t.Fatalf("namespace %q should be rejected", ns)
		}
	}
}

func TestNamespaceKeepsInvalidationInside(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	r := newTestReader(t, mp, seededStore(1), func(o *Options) { o.Namespace = "app:prod" })
	mp.put("app:staging:doc:1", []byte("{}"))

	_, _ = r.List(ctx, ListQuery{Page: 1, Limit: 20})
	r.InvalidateAll(ctx)

	if !mp.has("app:staging:doc:1") {
		t.Fatalf("InvalidateAll reached outside its namespace")
	}
	if mp.has("app:prod:list:page:1:limit:20") {
		t.Fatalf("namespaced list entry survived InvalidateAll")
	}
}

func TestDisabledReaderAlwaysQueriesStore(t *testing.T) {
	ctx := context.Background()
	s := seededStore(2)
	r := newTestReader(t, nil, s, func(o *Options) { o.Disabled = true })

	for i := 0; i < 3; i++ {
		if _, err := r.List(ctx, ListQuery{Page: 1, Limit: 20}); err != nil {
			t.Fatal(err)
		}
	}
	r.InvalidateAll(ctx)
	r.InvalidateOne(ctx, "x")
	if s.page.Load() != 3 || r.Enabled() {
		t.Fatalf("page queries = %d enabled=%v", s.page.Load(), r.Enabled())
	}
}

func TestNamespacePrefixesEveryKey(t *testing.T) {
	ctx := context.Background()
	s := seededStore(1)
	mp := newMemProvider()
	r := newTestReader(t, mp, s, func(o *Options) { o.Namespace = "app:prod" })
	id := fmt.Sprintf("%024x", 1)

	_, _ = r.List(ctx, ListQuery{Page: 1, Limit: 20})
	_, _, _ = r.ByID(ctx, id)
	_, _ = r.Today(ctx)
	for _, k := range []string{"app:prod:list:page:1:limit:20", "app:prod:doc:" + id, "app:prod:today"} {
		if !mp.has(k) {
			t.Fatalf("missing %q", k)
		}
	}

	r.InvalidateAll(ctx)
	if keys, _ := mp.Keys(ctx, "*"); len(keys) != 0 {
		t.Fatalf("InvalidateAll left %v", keys)
	}
}

func TestBinaryCodecsServeHits(t *testing.T) {
	for _, f := range []c.Format{c.FormatCBOR, c.FormatMsgpack} {
		t.Run(string(f), func(t *testing.T) {
			ctx := context.Background()
			s := seededStore(3)
			r := newTestReader(t, newMemProvider(), s, func(o *Options) { o.Codec = f })

			first, err := r.List(ctx, ListQuery{Page: 1, Limit: 2})
			if err != nil {
				t.Fatal(err)
			}
			second, err := r.List(ctx, ListQuery{Page: 1, Limit: 2})
			if err != nil {
				t.Fatal(err)
			}
			if s.page.Load() != 1 {
				t.Fatalf("second read missed the cache")
			}
			if strings.Join(ids(first.Data), ",") != strings.Join(ids(second.Data), ",") || second.Meta != first.Meta {
				t.Fatalf("cached envelope differs: %+v vs %+v", first, second)
			}
			if !second.Data[0].CreatedAt.Equal(first.Data[0].CreatedAt) {
				t.Fatalf("createdAt lost in %s round trip", f)
			}
		})
	}
}

// ==============================
// Fence
// ==============================

// A read that overlaps an invalidation writes its (possibly old) answer back
// unless a fence is configured.
func TestInvalidationRaceWithAndWithoutFence(t *testing.T) {
	ctx := context.Background()
	id := fmt.Sprintf("%024x", 1)

	t.Run("unfenced", func(t *testing.T) {
		s := seededStore(1)
		mp := newMemProvider()
		r := newTestReader(t, mp, s, nil)
		s.onLoad = func() { r.InvalidateOne(ctx, id) }

		if _, _, err := r.ByID(ctx, id); err != nil {
			t.Fatal(err)
		}
		if !mp.has("doc:" + id) {
			t.Fatalf("without a fence the racing read is expected to populate the cache")
		}
	})

	t.Run("fenced", func(t *testing.T) {
		s := seededStore(1)
		mp := newMemProvider()
		hooks := &recordingHooks{}
		fence := gen.NewLocalGenStore(0, 0)
		r := newTestReader(t, mp, s, func(o *Options) {
			o.Fence = fence
			o.Hooks = hooks
		})
		s.onLoad = func() { r.InvalidateOne(ctx, id) }

		it, ok, err := r.ByID(ctx, id)
		if err != nil || !ok || it.ID != id {
			t.Fatalf("fenced read must still return data: it=%+v ok=%v err=%v", it, ok, err)
		}
		if mp.has("doc:" + id) {
			t.Fatalf("fenced racing read wrote back")
		}
		if len(hooks.skipped) != 1 {
			t.Fatalf("StaleWriteSkipped = %v", hooks.skipped)
		}

		// next read without a race populates normally
		s.onLoad = nil
		if _, _, err := r.ByID(ctx, id); err != nil {
			t.Fatal(err)
		}
		if !mp.has("doc:" + id) {
			t.Fatalf("quiet read should populate the cache")
		}
	})

	t.Run("fenced_list_vs_invalidate_all", func(t *testing.T) {
		s := seededStore(2)
		mp := newMemProvider()
		r := newTestReader(t, mp, s, func(o *Options) { o.Fence = gen.NewLocalGenStore(0, 0) })
		s.onLoad = func() { r.InvalidateAll(ctx) }

		if _, err := r.List(ctx, ListQuery{Page: 1, Limit: 20}); err != nil {
			t.Fatal(err)
		}
		if mp.has("list:page:1:limit:20") {
			t.Fatalf("list written back across InvalidateAll")
		}
	})
}
