package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type entry struct {
	value any
	ttl   time.Duration
}

type mapBackend struct {
	entries map[string]entry
	err     error
}

func newMapBackend() *mapBackend {
	return &mapBackend{entries: map[string]entry{}}
}

func (m *mapBackend) Get(_ context.Context, key string) (any, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	e, ok := m.entries[key]
	return e.value, ok, nil
}

func (m *mapBackend) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.entries[key] = entry{value: value, ttl: ttl}
	return nil
}

func (m *mapBackend) Delete(_ context.Context, key string) (bool, error) {
	_, ok := m.entries[key]
	delete(m.entries, key)
	return ok, m.err
}

func TestProfileRoundTrip(t *testing.T) {
	backend := newMapBackend()
	in, err := cache.NewInterpreter(backend, cache.WithDefaultTTL(time.Minute))
	require.NoError(t, err)
	id := uuid.New()
	profile := cache.ProfileData{UserID: id, Name: "Ada", Email: "ada@example.com"}

	prog := func(yield effects.Yield) []cache.Lookup {
		miss := effects.Perform[cache.Lookup](yield, cache.GetCachedProfile{UserID: id})
		effects.Perform[cache.Stored](yield, cache.PutCachedProfile{UserID: id, Profile: profile})
		hit := effects.Perform[cache.Lookup](yield, cache.GetCachedProfile{UserID: id})
		return []cache.Lookup{miss, hit}
	}
	res := effects.Run(context.Background(), prog, in)

	lookups, ok := res.Value()
	require.True(t, ok)
	key := cache.ProfileKey(id)
	assert.Equal(t, cache.CacheMiss{Key: key}, lookups[0])
	assert.Equal(t, cache.CacheHit{Key: key, Value: profile}, lookups[1])
	assert.Equal(t, time.Minute, backend.entries[key].ttl)
}

func TestGetCachedValue_WrongTypeIsAMiss(t *testing.T) {
	backend := newMapBackend()
	backend.entries["k"] = entry{value: 42}
	in, err := cache.NewInterpreter(backend, cache.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	res := in.Interpret(context.Background(), cache.GetCachedValue{Key: "k"})

	ret, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, cache.CacheMiss{Key: "k"}, ret.Value)
}

func TestPutCachedValue_ExplicitTTLWins(t *testing.T) {
	backend := newMapBackend()
	in, err := cache.NewInterpreter(backend, cache.WithDefaultTTL(time.Minute))
	require.NoError(t, err)

	res := in.Interpret(context.Background(), cache.PutCachedValue{Key: "k", Value: []byte("v"), TTL: time.Second})

	ret, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, cache.Stored{Key: "k", ExpiresIn: time.Second}, ret.Value)
}

func TestInvalidateCache(t *testing.T) {
	backend := newMapBackend()
	backend.entries["k"] = entry{value: []byte("v")}
	in, err := cache.NewInterpreter(backend)
	require.NoError(t, err)

	first := in.Interpret(context.Background(), cache.InvalidateCache{Key: "k"})
	second := in.Interpret(context.Background(), cache.InvalidateCache{Key: "k"})

	ret, _ := first.Value()
	assert.Equal(t, cache.Invalidated{Key: "k", Existed: true}, ret.Value)
	ret, _ = second.Value()
	assert.Equal(t, cache.Invalidated{Key: "k", Existed: false}, ret.Value)
}

func TestBackendFailureIsRetryable(t *testing.T) {
	backend := newMapBackend()
	backend.err = errors.New("connection refused")
	in, err := cache.NewInterpreter(backend)
	require.NoError(t, err)

	res := in.Interpret(context.Background(), cache.GetCachedValue{Key: "k"})

	ierr, failed := res.Err()
	require.True(t, failed)
	var cacheErr *effects.CacheError
	assert.ErrorAs(t, ierr, &cacheErr)
	assert.True(t, ierr.Retryable())
}

func TestInterpret_AcceptsPointerEffects(t *testing.T) {
	backend := newMapBackend()
	backend.entries["k"] = entry{value: []byte("v")}
	in, err := cache.NewInterpreter(backend)
	require.NoError(t, err)

	ret, ok := in.Interpret(context.Background(), &cache.InvalidateCache{Key: "k"}).Value()

	require.True(t, ok)
	assert.Equal(t, "InvalidateCache", ret.EffectName)
	assert.Equal(t, cache.Invalidated{Key: "k", Existed: true}, ret.Value)
}
