// Package otter provides a cache.Backend on an Otter cache with per-entry
// TTL support.
package otter

import (
	"context"
	"time"

	"github.com/maypok86/otter"
	"github.com/on-the-ground/effect_ive_runtime/effects/cache"
)

var _ cache.Backend = (*Backend)(nil)

// DefaultTTL applies to entries stored without a TTL, since every Otter
// entry in a variable-TTL cache expires.
const DefaultTTL = 24 * time.Hour

type Backend struct {
	cache      otter.CacheWithVariableTTL[string, any]
	defaultTTL time.Duration
}

type Option func(*Backend)

func WithDefaultTTL(ttl time.Duration) Option {
	return func(b *Backend) { b.defaultTTL = ttl }
}

func New(capacity int, opts ...Option) (*Backend, error) {
	c, err := otter.MustBuilder[string, any](capacity).
		WithVariableTTL().
		Build()
	if err != nil {
		return nil, err
	}
	b := &Backend{cache: c, defaultTTL: DefaultTTL}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Backend) Get(_ context.Context, key string) (any, bool, error) {
	v, ok := b.cache.Get(key)
	return v, ok, nil
}

func (b *Backend) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = b.defaultTTL
	}
	b.cache.Set(key, value, ttl)
	return nil
}

func (b *Backend) Delete(_ context.Context, key string) (bool, error) {
	existed := b.cache.Has(key)
	b.cache.Delete(key)
	return existed, nil
}

func (b *Backend) Close() {
	b.cache.Close()
}
