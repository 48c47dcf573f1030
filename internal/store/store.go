// Package store defines the pluggable key-value backend used to persist
// serialized sessions, and the bundled implementations (in-process map,
// Redis) that satisfy it.
package store

import (
	"context"
	"errors"
)

// ErrUnavailable wraps backend failures from Get/Put so callers can map
// them to a transient-store HTTP status without inspecting driver-specific
// error types.
var ErrUnavailable = errors.New("store: backend unavailable")

// StringStore is the async KV interface shared by the allocator and the
// router. Implementations must provide last-writer-wins semantics with no
// transactions; readers may observe a stale value but never a torn one.
type StringStore interface {
	// Get returns the value for key and true, or ("", false, nil) if the
	// key is absent. A non-nil error indicates a transient backend failure.
	Get(ctx context.Context, key string) (string, bool, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key, value string) error
}
