// Package ristretto provides a cache.Backend on a Ristretto cache.
package ristretto

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/on-the-ground/effect_ive_runtime/effects/cache"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
)

var _ cache.Backend = (*Backend)(nil)

// ErrRejected is returned when Ristretto's admission policy drops a write.
var ErrRejected = errors.New("ristretto: set rejected by admission policy")

type Backend struct {
	cache *ristretto.Cache[string, any]
}

// New builds a cache holding up to maxEntries entries of cost one.
// Ristretto recommends NumCounters = 10 * MaxCost.
func New(maxEntries int64) (*Backend, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{cache: c}, nil
}

func (b *Backend) Get(_ context.Context, key string) (any, bool, error) {
	v, ok := b.cache.Get(key)
	return v, ok, nil
}

// Set waits for the write to be applied, so a following Get observes it.
func (b *Backend) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if !b.cache.SetWithTTL(key, value, 1, ttl) {
		return retry.Transient(ErrRejected)
	}
	b.cache.Wait()
	return nil
}

func (b *Backend) Delete(_ context.Context, key string) (bool, error) {
	_, existed := b.cache.Get(key)
	b.cache.Del(key)
	return existed, nil
}

func (b *Backend) Close() {
	b.cache.Close()
}
