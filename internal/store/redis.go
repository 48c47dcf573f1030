package store

import (
	"context"
	"fmt"

	redisclient "github.com/linkupdev/linkup-go/internal/pkg/redis"
)

const keyPrefix = "linkup:session:"

// Redis is a StringStore backed by the shared Redis client, used by the
// edge adapter and by the local server when store.backend is "redis" (so
// cluster worker processes can share one session store).
type Redis struct {
	client *redisclient.Client
}

// NewRedis wraps an already-connected Redis client as a StringStore.
func NewRedis(client *redisclient.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, keyPrefix+key)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if v == "" {
		exists, existsErr := r.Exists(ctx, key)
		if existsErr != nil {
			return "", false, existsErr
		}
		if !exists {
			return "", false, nil
		}
	}
	return v, true, nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.Exists(ctx, keyPrefix+key)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

func (r *Redis) Put(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, keyPrefix+key, value, 0); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
