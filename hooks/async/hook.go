// Package asynchook moves contentcache.Hooks events off the request path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{ReadErrorEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	r, _ := contentcache.New(contentcache.Options{
//	    Provider: provider,
//	    Store:    store,
//	    Hooks:    hooks,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/contentcache"
)

type Hooks struct {
	inner   contentcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ contentcache.Hooks = (*Hooks)(nil)

func New(inner contentcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent afterwards are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the queue was full or closed.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) CacheReadError(k string, err error) { h.try(func() { h.inner.CacheReadError(k, err) }) }
func (h *Hooks) PayloadRejected(k string, err error) {
	h.try(func() { h.inner.PayloadRejected(k, err) })
}
func (h *Hooks) CacheWriteError(k string, err error) {
	h.try(func() { h.inner.CacheWriteError(k, err) })
}
func (h *Hooks) StaleWriteSkipped(k string) { h.try(func() { h.inner.StaleWriteSkipped(k) }) }
func (h *Hooks) InvalidateFailed(err *contentcache.InvalidateError) {
	h.try(func() { h.inner.InvalidateFailed(err) })
}
