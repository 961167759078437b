package contentcache

import "context"

// Writer is the write-path side of the cache: every mutation goes to the store
// first and, once it succeeded, clears the affected cache families. Invalidation
// never fails a write.
type Writer struct {
	store WriteStore
	inv   Invalidator
}

func NewWriter(store WriteStore, inv Invalidator) *Writer {
	return &Writer{store: store, inv: inv}
}

// Create can change every list page, the count and the today set.
func (w *Writer) Create(ctx context.Context, item ContentItem) (ContentItem, error) {
	created, err := w.store.Create(ctx, item)
	if err != nil {
		return ContentItem{}, &StoreError{Op: "create", Err: err}
	}
	w.inv.InvalidateAll(ctx)
	return normalizeID(created), nil
}

// Update may touch fields rendered in list pages, so it clears everything.
func (w *Writer) Update(ctx context.Context, item ContentItem) (ContentItem, bool, error) {
	updated, ok, err := w.store.Update(ctx, item)
	if err != nil {
		return ContentItem{}, false, &StoreError{Op: "update", Err: err}
	}
	if !ok {
		return ContentItem{}, false, nil
	}
	w.inv.InvalidateAll(ctx)
	return normalizeID(updated), true, nil
}

func (w *Writer) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := w.store.Delete(ctx, id)
	if err != nil {
		return false, &StoreError{Op: "delete", Err: err}
	}
	if ok {
		w.inv.InvalidateAll(ctx)
	}
	return ok, nil
}

// AttachMedia adds one media reference. Membership, order and count are unchanged,
// so only doc:<id> is dropped.
func (w *Writer) AttachMedia(ctx context.Context, id string, m MediaRef) (bool, error) {
	ok, err := w.store.AppendMedia(ctx, id, m)
	if err != nil {
		return false, &StoreError{Op: "attach_media", Err: err}
	}
	if ok {
		w.inv.InvalidateOne(ctx, id)
	}
	return ok, nil
}
