// Package sloghooks renders contentcache.Hooks events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/contentcache"
)

type Options struct {
	// Sampling to avoid floods during a cache outage; 0/1 = log all.
	ReadErrorEvery  uint64
	WriteErrorEvery uint64
	// Optional key redactor. Defaults to a SHA-256 prefix. Use Identity to log raw keys.
	Redact func(string) string
}

// Identity leaves keys readable. Content keys carry no user data.
func Identity(k string) string { return k }

type Hooks struct {
	l    *slog.Logger
	opts Options

	readCtr  atomic.Uint64
	writeCtr atomic.Uint64
}

var _ contentcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CacheReadError(key string, err error) {
	if h.l == nil || !sample(h.opts.ReadErrorEvery, &h.readCtr) {
		return
	}
	h.l.Warn("contentcache.cache_read_error",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) PayloadRejected(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("contentcache.payload_rejected",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) CacheWriteError(key string, err error) {
	if h.l == nil || !sample(h.opts.WriteErrorEvery, &h.writeCtr) {
		return
	}
	h.l.Warn("contentcache.cache_write_error",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) InvalidateFailed(err *contentcache.InvalidateError) {
	if h.l == nil || err == nil {
		return
	}
	h.l.Error("contentcache.invalidate_failed",
		"scope", h.redact(err.Scope),
		"scan_err", err.ScanErr,
		"del_err", err.DelErr)
}

func (h *Hooks) StaleWriteSkipped(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("contentcache.stale_write_skipped",
		"key", h.redact(key))
}
