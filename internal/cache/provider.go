package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss reports that a key is not present in the cache.
var ErrCacheMiss = errors.New("cache miss")

// Provider is the byte-oriented cache used for verification results and
// evidence queries. Implementations must map "key absent" to ErrCacheMiss.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}

// NoopProvider satisfies Provider without storing anything, so callers can
// treat caching as always-on and simply miss every lookup.
type NoopProvider struct{}

var _ Provider = NoopProvider{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Close() error { return nil }
