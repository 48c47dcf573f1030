// Package allocator implements the session allocation algorithm: take a
// caller-requested name when nothing is stored under it yet, reuse it when
// its session token matches what is already stored, otherwise mint a fresh
// unique name, and persist the session under the chosen name.
package allocator

import (
	"context"
	"fmt"

	"github.com/linkupdev/linkup-go/internal/namegen"
	"github.com/linkupdev/linkup-go/internal/session"
)

// Store is the subset of store.StringStore the allocator needs.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key, value string) error
}

// Allocate takes desiredName when the store holds nothing under it, reuses
// it when the stored session's token matches sess's, and otherwise mints a
// fresh unique name via namegen. The chosen name's session is then persisted.
// Concurrent allocations can race onto the same name; the store's
// last-writer-wins Put is the accepted resolution, per §4.4.
func Allocate(ctx context.Context, store Store, kind namegen.Kind, desiredName string, sess *session.Session) (string, error) {
	name, err := resolveName(ctx, store, kind, desiredName, sess.SessionToken)
	if err != nil {
		return "", err
	}

	encoded, err := sess.ToJSON()
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}

	if err := store.Put(ctx, name, string(encoded)); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return name, nil
}

func resolveName(ctx context.Context, store Store, kind namegen.Kind, desiredName, sessionToken string) (string, error) {
	if desiredName != "" {
		existing, ok, err := store.Get(ctx, desiredName)
		if err != nil {
			return "", fmt.Errorf("lookup existing session: %w", err)
		}
		if !ok {
			return desiredName, nil
		}
		existingSess, err := session.ParseJSON([]byte(existing))
		if err == nil && existingSess.SessionToken == sessionToken {
			return desiredName, nil
		}
	}

	name, err := namegen.AllocateUnique(ctx, kind, store)
	if err != nil {
		return "", fmt.Errorf("allocate name: %w", err)
	}
	return name, nil
}
