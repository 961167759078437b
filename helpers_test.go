package contentcache

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pr "github.com/unkn0wn-root/contentcache/provider"
)

// ==============================
// Providers
// ==============================

type memEntry struct {
	v   []byte
	ttl time.Duration
	exp time.Time // zero => no TTL
}

type memProvider struct {
	mu sync.Mutex
	m  map[string]memEntry

	gets atomic.Int64
	sets atomic.Int64
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.gets.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.sets.Add(1)
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.mu.Lock()
	p.m[key] = memEntry{v: append([]byte(nil), value...), ttl: ttl, exp: exp}
	p.mu.Unlock()
	return true, nil
}

func (p *memProvider) Del(_ context.Context, keys ...string) error {
	p.mu.Lock()
	for _, k := range keys {
		delete(p.m, k)
	}
	p.mu.Unlock()
	return nil
}

func (p *memProvider) Keys(_ context.Context, pattern string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for k := range p.m {
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func (p *memProvider) has(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.m[key]
	return ok
}

// ttlOf reports the ttl the last Set used for key.
func (p *memProvider) ttlOf(key string) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	return e.ttl, ok
}

func (p *memProvider) put(key string, raw []byte) {
	p.mu.Lock()
	p.m[key] = memEntry{v: raw}
	p.mu.Unlock()
}

var errCacheDown = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

// downProvider fails every call, like an unreachable Redis.
type downProvider struct{}

var _ pr.Provider = downProvider{}

func (downProvider) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errCacheDown
}
func (downProvider) Set(context.Context, string, []byte, int64, time.Duration) (bool, error) {
	return false, errCacheDown
}
func (downProvider) Del(context.Context, ...string) error           { return errCacheDown }
func (downProvider) Keys(context.Context, string) ([]string, error) { return nil, errCacheDown }
func (downProvider) Close(context.Context) error                    { return nil }

// ==============================
// Store
// ==============================

type countingStore struct {
	mu    sync.Mutex
	items []ContentItem
	seq   int

	byID    atomic.Int64
	page    atomic.Int64
	count   atomic.Int64
	between atomic.Int64

	err    error
	onLoad func() // runs inside every read query, before it returns
}

var (
	_ Store      = (*countingStore)(nil)
	_ WriteStore = (*countingStore)(nil)
)

func (s *countingStore) queries() int64 {
	return s.byID.Load() + s.page.Load() + s.count.Load() + s.between.Load()
}

func (s *countingStore) hook() {
	if s.onLoad != nil {
		s.onLoad()
	}
}

func (s *countingStore) sorted() []ContentItem {
	s.mu.Lock()
	out := append([]ContentItem(nil), s.items...)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *countingStore) FindByID(_ context.Context, id string) (ContentItem, bool, error) {
	s.byID.Add(1)
	s.hook()
	if s.err != nil {
		return ContentItem{}, false, s.err
	}
	for _, it := range s.sorted() {
		if it.NativeID == id {
			return it, true, nil
		}
	}
	return ContentItem{}, false, nil
}

func (s *countingStore) FindPage(_ context.Context, skip, limit int) ([]ContentItem, error) {
	s.page.Add(1)
	s.hook()
	if s.err != nil {
		return nil, s.err
	}
	all := s.sorted()
	if skip >= len(all) {
		return nil, nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	return all[skip:end], nil
}

func (s *countingStore) Count(context.Context) (int, error) {
	s.count.Add(1)
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}

func (s *countingStore) FindCreatedBetween(_ context.Context, from, to time.Time) ([]ContentItem, error) {
	s.between.Add(1)
	s.hook()
	if s.err != nil {
		return nil, s.err
	}
	var out []ContentItem
	for _, it := range s.sorted() {
		if !it.CreatedAt.Before(from) && !it.CreatedAt.After(to) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *countingStore) Create(_ context.Context, it ContentItem) (ContentItem, error) {
	if s.err != nil {
		return ContentItem{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if it.NativeID == "" {
		it.NativeID = fmt.Sprintf("%024x", s.seq)
	}
	s.items = append(s.items, it)
	return it, nil
}

func (s *countingStore) Update(_ context.Context, it ContentItem) (ContentItem, bool, error) {
	if s.err != nil {
		return ContentItem{}, false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].NativeID == it.NativeID {
			s.items[i] = it
			return it, true, nil
		}
	}
	return ContentItem{}, false, nil
}

func (s *countingStore) Delete(_ context.Context, id string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].NativeID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *countingStore) AppendMedia(_ context.Context, id string, m MediaRef) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].NativeID == id {
			s.items[i].Media = append(s.items[i].Media, m)
			return true, nil
		}
	}
	return false, nil
}

// ==============================
// Hooks
// ==============================

type recordingHooks struct {
	mu          sync.Mutex
	readErrs    []string
	rejected    []string
	writeErrs   []string
	invalidates []*InvalidateError
	skipped     []string
}

var _ Hooks = (*recordingHooks)(nil)

func (h *recordingHooks) CacheReadError(k string, _ error) {
	h.mu.Lock()
	h.readErrs = append(h.readErrs, k)
	h.mu.Unlock()
}
func (h *recordingHooks) PayloadRejected(k string, _ error) {
	h.mu.Lock()
	h.rejected = append(h.rejected, k)
	h.mu.Unlock()
}
func (h *recordingHooks) CacheWriteError(k string, _ error) {
	h.mu.Lock()
	h.writeErrs = append(h.writeErrs, k)
	h.mu.Unlock()
}
func (h *recordingHooks) InvalidateFailed(err *InvalidateError) {
	h.mu.Lock()
	h.invalidates = append(h.invalidates, err)
	h.mu.Unlock()
}
func (h *recordingHooks) StaleWriteSkipped(k string) {
	h.mu.Lock()
	h.skipped = append(h.skipped, k)
	h.mu.Unlock()
}

// ==============================
// Fixtures
// ==============================

var t0 = time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)

func itemAt(id string, at time.Time) ContentItem {
	return ContentItem{
		NativeID:  id,
		Title:     "title " + id,
		Summary:   "summary " + id,
		Body:      "body " + id,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func seededStore(n int) *countingStore {
	s := &countingStore{}
	for i := 1; i <= n; i++ {
		s.items = append(s.items, itemAt(fmt.Sprintf("%024x", i), t0.Add(time.Duration(i)*time.Minute)))
	}
	s.seq = n
	return s
}

func newTestReader(t *testing.T, p pr.Provider, s Store, optsOpt func(*Options)) Reader {
	t.Helper()
	opts := Options{Provider: p, Store: s}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	r, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func mustImpl(t *testing.T, r Reader) *reader {
	t.Helper()
	impl, ok := r.(*reader)
	if !ok {
		t.Fatalf("unexpected concrete type for Reader")
	}
	return impl
}

func ids(items []ContentItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
