package cache

import (
	"context"
	"time"

	"github.com/veridoc-labs/veridoc/core/pkg/resiliency"
)

// GuardedBackend wraps an external backend with a circuit breaker. While the
// breaker is open every operation fails fast with ErrCircuitOpen, which the
// ResultCache layer above degrades to a miss/no-op, so a flapping Redis never
// adds latency to validations.
type GuardedBackend struct {
	inner   Backend
	breaker *resiliency.CircuitBreaker
}

// NewGuardedBackend guards inner with the given breaker.
func NewGuardedBackend(inner Backend, breaker *resiliency.CircuitBreaker) *GuardedBackend {
	return &GuardedBackend{inner: inner, breaker: breaker}
}

func (g *GuardedBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var raw []byte
	var ok bool
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		raw, ok, err = g.inner.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return raw, ok, nil
}

func (g *GuardedBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.breaker.Call(ctx, func(ctx context.Context) error {
		return g.inner.Set(ctx, key, value, ttl)
	})
}

func (g *GuardedBackend) Clear(ctx context.Context, namespace string) (bool, error) {
	var cleared bool
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		cleared, err = g.inner.Clear(ctx, namespace)
		return err
	})
	return cleared, err
}
