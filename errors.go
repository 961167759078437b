package contentcache

import (
	"errors"
	"fmt"
)

// ErrInvalidID is returned by store bindings for identifiers they cannot parse.
var ErrInvalidID = errors.New("contentcache: invalid id")

// StoreError wraps a backing store failure. It is the only error a read surfaces
// apart from ErrInvalidQuery.
type StoreError struct {
	Op  string // "list", "count", "by_id", "today", "create", ...
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("contentcache: store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// InvalidateError describes a failed invalidation. It never reaches the write path;
// it is handed to the Logger and Hooks.
type InvalidateError struct {
	Scope   string // "all" or "doc:<id>"
	ScanErr error  // key enumeration failed
	DelErr  error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.ScanErr != nil && e.DelErr != nil:
		return fmt.Sprintf("invalidate %q failed: scan and delete failed: scan=%v; delete=%v",
			e.Scope, e.ScanErr, e.DelErr)
	case e.ScanErr != nil:
		return fmt.Sprintf("invalidate %q: key scan failed: %v", e.Scope, e.ScanErr)
	case e.DelErr != nil:
		return fmt.Sprintf("invalidate %q: delete failed: %v", e.Scope, e.DelErr)
	default:
		return fmt.Sprintf("invalidate %q: unknown error", e.Scope)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.ScanErr != nil {
		errs = append(errs, e.ScanErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}
