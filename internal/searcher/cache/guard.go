package cache

import (
	"context"
	"time"

	pkgredis "github.com/Phil-Holland/notes-serve/pkg/redis"
	"github.com/Phil-Holland/notes-serve/pkg/resilience"
)

// GuardedStore bounds every call to the underlying store by a timeout and
// stops calling it for a while once it keeps failing. A missing key is not
// a failure.
type GuardedStore struct {
	store   Store
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

func Guard(store Store, timeout time.Duration) *GuardedStore {
	return &GuardedStore{
		store: store,
		breaker: resilience.NewCircuitBreaker("query-cache", resilience.BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			IsFailure: func(err error) bool {
				return err != nil && !pkgredis.IsNilError(err)
			},
		}),
		timeout: timeout,
	}
}

func (g *GuardedStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := g.call(ctx, "cache get", func(ctx context.Context) error {
		var err error
		value, err = g.store.Get(ctx, key)
		return err
	})
	return value, err
}

func (g *GuardedStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return g.call(ctx, "cache set", func(ctx context.Context) error {
		return g.store.Set(ctx, key, value, ttl)
	})
}

// FlushByPattern is not guarded by the timeout; a large flush may take a
// while and is an explicit admin action.
func (g *GuardedStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = g.store.FlushByPattern(ctx, pattern)
		return err
	})
	return deleted, err
}

func (g *GuardedStore) State() resilience.State {
	return g.breaker.State()
}

func (g *GuardedStore) call(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, g.timeout, name, fn)
	})
}
