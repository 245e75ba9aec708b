// Package assembly turns process wiring into effects.
//
// Startup and shutdown are ordinary Programs yielding assembly effects; the
// host application supplies one callback per effect. Each effect is meant
// to be interpreted once per process lifetime.
package assembly

import (
	"context"
	"errors"
	"fmt"

	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
)

const Name = "runtime_assembly"

// Callbacks are supplied by the host application. A nil callback makes
// the matching effect fail.
type Callbacks struct {
	CreateDatabasePool             func(ctx context.Context, e CreateDatabasePool) (any, error)
	CloseDatabasePool              func(ctx context.Context, e CloseDatabasePool) error
	CreateClientFactory            func(ctx context.Context, e CreateClientFactory) (ClientFactory, error)
	CloseClientFactory             func(ctx context.Context, e CloseClientFactory) error
	ConfigureCors                  func(ctx context.Context, e ConfigureCors) error
	IncludeRouter                  func(ctx context.Context, e IncludeRouter) error
	MountStatic                    func(ctx context.Context, e MountStatic) error
	SetAppMetadata                 func(ctx context.Context, e SetAppMetadata) error
	RegisterHTTPRoute              func(ctx context.Context, e RegisterHTTPRoute) error
	CreateObservabilityInterpreter func(ctx context.Context, e CreateObservabilityInterpreter) (effects.Interpreter, error)
	CloseObservabilityInterpreter  func(ctx context.Context, e CloseObservabilityInterpreter) error
}

var (
	ErrNoCallback = errors.New("no callback registered")
	ErrNoResource = errors.New("no resource returned")
)

type Interpreter struct {
	callbacks Callbacks
}

func NewInterpreter(callbacks Callbacks) *Interpreter {
	return &Interpreter{callbacks: callbacks}
}

func (i *Interpreter) Interpret(ctx context.Context, eff effects.Effect) effects.InterpretResult {
	e, ok := effects.Concrete(eff).(Effect)
	if !ok {
		return effects.Unhandled(eff, Name)
	}

	cb := i.callbacks
	var (
		res any
		err error
	)
	switch e := e.(type) {
	case CreateDatabasePool:
		res, err = create(ctx, cb.CreateDatabasePool, e, func(pool any) any { return PoolCreated{Pool: pool} })
	case CloseDatabasePool:
		res, err = apply(ctx, cb.CloseDatabasePool, e)
	case CreateClientFactory:
		res, err = create(ctx, cb.CreateClientFactory, e, func(f ClientFactory) any { return FactoryCreated{Factory: f} })
	case CloseClientFactory:
		res, err = apply(ctx, cb.CloseClientFactory, e)
	case ConfigureCors:
		res, err = apply(ctx, cb.ConfigureCors, e)
	case IncludeRouter:
		res, err = apply(ctx, cb.IncludeRouter, e)
	case MountStatic:
		res, err = apply(ctx, cb.MountStatic, e)
	case SetAppMetadata:
		res, err = apply(ctx, cb.SetAppMetadata, e)
	case RegisterHTTPRoute:
		res, err = apply(ctx, cb.RegisterHTTPRoute, e)
	case CreateObservabilityInterpreter:
		res, err = create(ctx, cb.CreateObservabilityInterpreter, e, func(in effects.Interpreter) any {
			return ObservabilityCreated{Interpreter: in}
		})
	case CloseObservabilityInterpreter:
		res, err = apply(ctx, cb.CloseObservabilityInterpreter, e)
	default:
		panic(fmt.Errorf("invalid runtime assembly effect type: %T", e))
	}

	if errors.Is(err, ErrNoCallback) || errors.Is(err, ErrNoResource) {
		return effects.Failed(effects.NewRuntimeAssemblyError(eff, err.Error(), false, err))
	}
	if err != nil {
		return effects.Failed(effects.NewRuntimeAssemblyError(eff, err.Error(), retry.RuntimeAssembly.Classify(err), err))
	}
	return effects.Returned(eff, res)
}

func create[E Effect, R any](
	ctx context.Context,
	cb func(context.Context, E) (R, error),
	e E,
	wrap func(R) any,
) (any, error) {
	if cb == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoCallback, e.EffectTag())
	}
	return effects.Safely(func() (any, error) {
		r, err := cb(ctx, e)
		if err != nil {
			return nil, err
		}
		if any(r) == nil {
			return nil, fmt.Errorf("%w by %s", ErrNoResource, e.EffectTag())
		}
		return wrap(r), nil
	})
}

func apply[E Effect](ctx context.Context, cb func(context.Context, E) error, e E) (any, error) {
	if cb == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoCallback, e.EffectTag())
	}
	return effects.Safely(func() (any, error) {
		if err := cb(ctx, e); err != nil {
			return nil, err
		}
		return Applied{Effect: e.EffectTag()}, nil
	})
}
