package effects

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// Effect is an immutable description of an action a Program wants performed.
//
// Effects are plain values: they carry the data an interpreter needs and no
// behaviour. Each effect family declares a sealed interface embedding Effect,
// so an interpreter can match its family exhaustively.
type Effect interface {
	// EffectTag names the effect kind, e.g. "GetUserById".
	EffectTag() string
}

// EffectReturn wraps an interpreted value together with the tag of the
// effect that produced it.
type EffectReturn struct {
	Value      any
	EffectName string
}

// ReturnOf builds the EffectReturn for eff carrying value.
func ReturnOf(eff Effect, value any) EffectReturn {
	return EffectReturn{Value: value, EffectName: TagOf(eff)}
}

// Concrete returns the effect value eff points to when eff is a pointer to
// an effect struct, and eff itself otherwise. A nil pointer yields nil.
//
// Interpreters match on effect values; Concrete lets them accept
// &GetUserByID{...} the same as GetUserByID{...}.
func Concrete(eff Effect) Effect {
	v := reflect.ValueOf(eff)
	if v.Kind() != reflect.Pointer {
		return eff
	}
	if v.IsNil() {
		return nil
	}
	if inner, ok := v.Elem().Interface().(Effect); ok {
		return inner
	}
	return eff
}

// TagOf is eff.EffectTag() that tolerates nil effects and nil pointers.
func TagOf(eff Effect) string {
	eff = Concrete(eff)
	if eff == nil {
		return "<nil>"
	}
	return eff.EffectTag()
}

// InterpretResult is what every interpreter answers for a single effect.
type InterpretResult = Result[EffectReturn, InterpreterError]

// Returned is the successful InterpretResult for eff.
func Returned(eff Effect, value any) InterpretResult {
	return Ok[EffectReturn, InterpreterError](ReturnOf(eff, value))
}

// Failed is the failed InterpretResult carrying err.
func Failed(err InterpreterError) InterpretResult {
	return Err[EffectReturn](err)
}

// Interpreter executes one effect at a time.
//
// Implementations must not panic. An interpreter that does not recognize the
// effect returns Err(*UnhandledEffectError) without any side effect.
type Interpreter interface {
	Interpret(ctx context.Context, eff Effect) InterpretResult
}

// InterpreterFunc adapts a function to the Interpreter interface.
type InterpreterFunc func(ctx context.Context, eff Effect) InterpretResult

func (f InterpreterFunc) Interpret(ctx context.Context, eff Effect) InterpretResult {
	return f(ctx, eff)
}

// Unhandled reports that the named interpreter does not recognize eff.
func Unhandled(eff Effect, interpreterName string) InterpretResult {
	return Failed(&UnhandledEffectError{
		Eff:                   eff,
		AvailableInterpreters: []string{interpreterName},
	})
}

// Equal reports whether two effects describe the same action.
//
// Effects built only from comparable fields can also be compared with ==;
// Equal additionally covers effects carrying byte payloads or label maps.
func Equal(a, b Effect) bool {
	return cmp.Equal(a, b)
}

// Safely calls fn and turns a panic raised inside it into an error, so a
// misbehaving capability never crosses an interpreter boundary as a panic.
func Safely[T any](fn func() (T, error)) (res T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			res = zero
			if rErr, ok := r.(error); ok {
				err = fmt.Errorf("panic: %w", rErr)
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
