package contentcache

import "time"

const (
	defaultListTTL  = 60 * time.Second
	defaultDocTTL   = 5 * time.Minute
	defaultTodayTTL = 60 * time.Second

	// DefaultLocation is the zone whose calendar day defines the today query (UTC+5:30).
	DefaultLocation = "Asia/Kolkata"
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
