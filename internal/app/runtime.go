package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/on-the-ground/effect_ive_runtime/backends/broker"
	"github.com/on-the-ground/effect_ive_runtime/backends/jwtauth"
	"github.com/on-the-ground/effect_ive_runtime/backends/memdb"
	"github.com/on-the-ground/effect_ive_runtime/backends/postgres"
	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/auth"
	"github.com/on-the-ground/effect_ive_runtime/effects/cache"
	"github.com/on-the-ground/effect_ive_runtime/effects/composite"
	"github.com/on-the-ground/effect_ive_runtime/effects/database"
	"github.com/on-the-ground/effect_ive_runtime/effects/instrument"
	"github.com/on-the-ground/effect_ive_runtime/effects/messaging"
	"github.com/on-the-ground/effect_ive_runtime/effects/observability"
	"github.com/on-the-ground/effect_ive_runtime/effects/storage"
	"github.com/on-the-ground/effect_ive_runtime/effects/system"
	"github.com/on-the-ground/effect_ive_runtime/effects/websocket"
	"github.com/on-the-ground/effect_ive_runtime/internal/config"
	"go.uber.org/zap"
)

var ErrInvalidResources = errors.New("app: invalid startup resources")

// Runtime holds the interpreters built from the startup resources. One
// Runtime serves every Program of the process; only the websocket
// interpreter differs between Programs.
type Runtime struct {
	database  effects.Interpreter
	cache     effects.Interpreter
	system    effects.Interpreter
	messaging effects.Interpreter
	storage   effects.Interpreter
	auth      effects.Interpreter
	metrics   effects.Interpreter

	collector observability.MetricsCollector
	broker    *broker.Broker
	logger    *zap.Logger
}

func NewRuntime(cfg *config.Config, res Resources, logger *zap.Logger) (*Runtime, error) {
	rt := &Runtime{system: system.NewInterpreter(), logger: logger}

	var (
		users    database.UserRepository
		messages database.MessageRepository
		objects  storage.ObjectStore
	)
	switch pool := res.Pool.(type) {
	case *pgxpool.Pool:
		users, messages = postgres.NewUsers(pool), postgres.NewMessages(pool)
	case *memdb.Store:
		users, messages, objects = pool.Users(), pool.Messages(), pool.Objects()
	default:
		return nil, fmt.Errorf("%w: database pool %T", ErrInvalidResources, res.Pool)
	}

	var err error
	if rt.database, err = database.NewInterpreter(users, messages); err != nil {
		return nil, err
	}

	if res.CacheFactory == nil {
		return nil, fmt.Errorf("%w: missing cache client factory", ErrInvalidResources)
	}
	if rt.cache, err = cache.NewInterpreter(res.CacheFactory.Backend(),
		cache.WithDefaultTTL(cfg.CacheTTL()),
		cache.WithLogger(logger.Named("cache")),
	); err != nil {
		return nil, err
	}

	if cfg.Messaging.Enabled {
		rt.broker = broker.New(cfg.Messaging.Topics, broker.WithLogger(logger.Named("broker")))
		if rt.messaging, err = messaging.NewInterpreter(rt.broker, rt.broker,
			messaging.WithConsumeTimeout(cfg.ConsumeTimeout()),
		); err != nil {
			return nil, err
		}
	}

	if cfg.Storage.Enabled {
		if objects == nil {
			store, err := memdb.NewStore()
			if err != nil {
				return nil, err
			}
			objects = store.Objects()
		}
		if rt.storage, err = storage.NewInterpreter(objects); err != nil {
			return nil, err
		}
	}

	if cfg.Auth.Enabled {
		tokens, err := jwtauth.NewTokenService([]byte(cfg.Auth.Secret),
			jwtauth.WithIssuer(cfg.Auth.Issuer),
			jwtauth.WithAccessTTL(cfg.AccessTTL()),
			jwtauth.WithRefreshTTL(cfg.RefreshTTL()),
		)
		if err != nil {
			return nil, err
		}
		hasher, err := jwtauth.NewPasswordHasher(cfg.Auth.BcryptCost)
		if err != nil {
			return nil, err
		}
		if rt.auth, err = auth.NewInterpreter(auth.Services{
			Tokens:    tokens,
			Passwords: hasher,
			Users:     users,
		}); err != nil {
			return nil, err
		}
	}

	if obs, ok := res.Observability.(*observability.Interpreter); ok {
		rt.metrics = obs
		rt.collector = obs.Collector()
	}
	return rt, nil
}

// Interpreter returns the composite for one Program, talking to conn for
// websocket effects. conn may be nil outside websocket sessions.
func (rt *Runtime) Interpreter(conn websocket.Connection) (effects.Interpreter, error) {
	c, err := composite.New(composite.Config{
		Database:  rt.database,
		Cache:     rt.cache,
		System:    rt.system,
		WebSocket: websocket.NewInterpreter(conn),
		Messaging: rt.messaging,
		Storage:   rt.storage,
		Auth:      rt.auth,
		Metrics:   rt.metrics,
	}, composite.WithLogger(rt.logger.Named("composite")))
	if err != nil {
		return nil, err
	}
	if rt.collector == nil {
		return c, nil
	}
	return instrument.New(c, rt.collector, instrument.WithLogger(rt.logger.Named("instrument"))), nil
}

// Run interprets program on rt.
func Run[T any](
	ctx context.Context,
	rt *Runtime,
	conn websocket.Connection,
	program effects.Program[T],
) effects.Result[T, effects.InterpreterError] {
	interpreter, err := rt.Interpreter(conn)
	if err != nil {
		// Only reachable if NewRuntime left a required interpreter unset.
		panic(err)
	}
	return effects.Run(ctx, program, interpreter)
}

// Close stops the runtime's own background work. Shared resources are
// released by the Shutdown Program.
func (rt *Runtime) Close() {
	if rt.broker != nil {
		rt.broker.Close()
	}
}
