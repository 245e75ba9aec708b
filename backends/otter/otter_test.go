package otter_test

import (
	"context"
	"testing"
	"time"

	"github.com/on-the-ground/effect_ive_runtime/backends/otter"
	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend(t *testing.T) {
	ctx := context.Background()
	b, err := otter.New(100)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Set(ctx, "k", "v", 0))
	v, found, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)

	existed, err := b.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, existed)

	_, found, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBackend_EntriesExpire(t *testing.T) {
	ctx := context.Background()
	b, err := otter.New(100)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Set(ctx, "k", "v", 50*time.Millisecond))

	assert.Eventually(t, func() bool {
		_, found, _ := b.Get(ctx, "k")
		return !found
	}, 5*time.Second, 20*time.Millisecond)
}

func TestBackend_ServesCacheInterpreter(t *testing.T) {
	b, err := otter.New(100, otter.WithDefaultTTL(time.Hour))
	require.NoError(t, err)
	defer b.Close()
	in, err := cache.NewInterpreter(b)
	require.NoError(t, err)

	prog := func(yield effects.Yield) cache.Lookup {
		effects.Perform[cache.Stored](yield, cache.PutCachedValue{Key: "k", Value: []byte("v")})
		return effects.Perform[cache.Lookup](yield, cache.GetCachedValue{Key: "k"})
	}
	res := effects.Run(context.Background(), prog, in)

	v, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, cache.CacheHit{Key: "k", Value: []byte("v")}, v)
}
