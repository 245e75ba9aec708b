// Package cache holds the cache effect family and its interpreter.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
	"go.uber.org/zap"
)

const Name = "cache"

// Backend is the key/value capability a cache provides.
type Backend interface {
	Get(ctx context.Context, key string) (value any, found bool, err error)
	// Set stores value; a zero ttl means no expiry.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) (existed bool, err error)
}

var ErrNilBackend = errors.New("cache: nil backend")

type Interpreter struct {
	backend    Backend
	defaultTTL time.Duration
	logger     *zap.Logger
}

type Option func(*Interpreter)

// WithDefaultTTL sets the TTL used when an effect carries none.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(i *Interpreter) { i.defaultTTL = ttl }
}

func WithLogger(logger *zap.Logger) Option {
	return func(i *Interpreter) { i.logger = logger }
}

func NewInterpreter(backend Backend, opts ...Option) (*Interpreter, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	i := &Interpreter{backend: backend, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func (i *Interpreter) Interpret(ctx context.Context, eff effects.Effect) effects.InterpretResult {
	e, ok := effects.Concrete(eff).(Effect)
	if !ok {
		return effects.Unhandled(eff, Name)
	}

	var (
		res any
		err error
	)
	switch e := e.(type) {
	case GetCachedProfile:
		res, err = i.lookup(ctx, ProfileKey(e.UserID), func(v any) bool {
			_, ok := v.(ProfileData)
			return ok
		})
	case PutCachedProfile:
		res, err = i.store(ctx, ProfileKey(e.UserID), e.Profile, e.TTL)
	case GetCachedValue:
		res, err = i.lookup(ctx, e.Key, func(v any) bool {
			_, ok := v.([]byte)
			return ok
		})
	case PutCachedValue:
		res, err = i.store(ctx, e.Key, e.Value, e.TTL)
	case InvalidateCache:
		res, err = effects.Safely(func() (Invalidated, error) {
			existed, err := i.backend.Delete(ctx, e.Key)
			return Invalidated{Key: e.Key, Existed: existed}, err
		})
	default:
		panic(fmt.Errorf("invalid cache effect type: %T", e))
	}

	if err != nil {
		return effects.Failed(effects.NewCacheError(eff, err.Error(), retry.Cache.Classify(err), err))
	}
	return effects.Returned(eff, res)
}

// lookup reads key; an entry of an unexpected type counts as a miss and is
// logged, since a cache is never the source of truth.
func (i *Interpreter) lookup(ctx context.Context, key string, wellTyped func(any) bool) (Lookup, error) {
	return effects.Safely(func() (Lookup, error) {
		v, found, err := i.backend.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			return CacheMiss{Key: key}, nil
		}
		if !wellTyped(v) {
			i.logger.Warn("cache entry has unexpected type, treating as miss",
				zap.String("key", key), zap.String("type", fmt.Sprintf("%T", v)))
			return CacheMiss{Key: key}, nil
		}
		return CacheHit{Key: key, Value: v}, nil
	})
}

func (i *Interpreter) store(ctx context.Context, key string, value any, ttl time.Duration) (Stored, error) {
	if ttl <= 0 {
		ttl = i.defaultTTL
	}
	return effects.Safely(func() (Stored, error) {
		if err := i.backend.Set(ctx, key, value, ttl); err != nil {
			return Stored{}, err
		}
		return Stored{Key: key, ExpiresIn: ttl}, nil
	})
}
