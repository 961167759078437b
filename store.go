package contentcache

import (
	"context"
	"time"
)

// Store is the backing store (source of truth) consumed by the reader. Bindings
// live under store/. Items must come back newest first where a list is returned.
type Store interface {
	// FindByID returns ok=false with a nil error when no record exists.
	FindByID(ctx context.Context, id string) (item ContentItem, ok bool, err error)
	// FindPage returns at most limit items ordered by creation time descending.
	FindPage(ctx context.Context, skip, limit int) ([]ContentItem, error)
	Count(ctx context.Context) (int, error)
	// FindCreatedBetween returns items with from <= createdAt <= to, newest first.
	FindCreatedBetween(ctx context.Context, from, to time.Time) ([]ContentItem, error)
}

// WriteStore is the write side used by Writer. It is implemented by the store
// bindings but is not needed by the read path.
type WriteStore interface {
	Create(ctx context.Context, item ContentItem) (ContentItem, error)
	Update(ctx context.Context, item ContentItem) (ContentItem, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	AppendMedia(ctx context.Context, id string, m MediaRef) (bool, error)
}
