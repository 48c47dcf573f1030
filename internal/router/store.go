package router

import "context"

// Store is the subset of store.StringStore the router needs to resolve a
// session name to its document.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
}
