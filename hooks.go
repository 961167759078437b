package contentcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The reader calls them on hot paths.
type Hooks interface {
	// Provider Get failed; the read fell through to the store.
	CacheReadError(key string, err error)

	// A cached payload could not be decoded (corrupt, oversized, old format).
	// The entry was deleted best-effort and the read fell through to the store.
	PayloadRejected(key string, err error)

	// Encoding or provider Set failed after a store read. The caller still got data.
	CacheWriteError(key string, err error)

	// InvalidateAll / InvalidateOne could not clear the cache.
	InvalidateFailed(err *InvalidateError)

	// A fenced write was dropped because an invalidation ran during the store query.
	StaleWriteSkipped(key string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CacheReadError(string, error)      {}
func (NopHooks) PayloadRejected(string, error)     {}
func (NopHooks) CacheWriteError(string, error)     {}
func (NopHooks) InvalidateFailed(*InvalidateError) {}
func (NopHooks) StaleWriteSkipped(string)          {}
