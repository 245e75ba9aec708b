package effects

import (
	"context"
	"fmt"
	"runtime"
)

// Yield suspends the running Program on eff and resumes it with the value
// the interpreter produced for eff.
//
// A Yield is only valid inside the Program invocation it was handed to and
// must not be shared with other goroutines.
type Yield func(eff Effect) any

// Program is a cooperatively suspending computation. It never performs I/O:
// every externally produced outcome is obtained by yielding an Effect.
//
// A Program may yield any number of times, inside loops or conditionals,
// and finishes by returning its final value. Sub-programs compose by calling
// them with the same yield.
type Program[T any] func(yield Yield) T

// Perform yields eff and asserts the resumed value to R.
//
// It panics if the interpreter answered with a different type, which is a
// bug in the Program or the interpreter, not a runtime failure.
func Perform[R any](yield Yield, eff Effect) R {
	raw := yield(eff)
	v, ok := raw.(R)
	if !ok {
		var zero R
		panic(fmt.Errorf("effect %s resumed with %T, expected %T", TagOf(eff), raw, zero))
	}
	return v
}

// suspension is a Program parked on an effect, waiting to be resumed.
type suspension struct {
	eff Effect
	// buffered to prevent blocking if the runner resumes before the program waits
	resumeCh chan any
}

type programStep[T any] struct {
	suspended  *suspension
	done       bool
	value      T
	panicked   bool
	panicValue any
}

// Run drives program to completion against interpreter.
//
// Effects are interpreted strictly in yield order, one at a time. The first
// Err stops the Program immediately: no rollback, no retry and no further
// effects, and that exact error is returned once the Program's deferred
// calls have run. A panic raised by the Program itself is re-raised on the
// caller's goroutine, and a Program that calls runtime.Goexit makes the
// caller's goroutine exit the same way.
func Run[T any](
	ctx context.Context,
	program Program[T],
	interpreter Interpreter,
) Result[T, InterpreterError] {
	steps := make(chan programStep[T])
	exited := make(chan struct{})
	go drive(program, steps, exited)

	for {
		var step programStep[T]
		select {
		case step = <-steps:
		case <-exited:
			// The program called runtime.Goexit itself; the caller exits too.
			runtime.Goexit()
		}
		switch {
		case step.panicked:
			<-exited
			panic(step.panicValue)

		case step.done:
			<-exited
			return Ok[T, InterpreterError](step.value)

		default:
			res := interpretSuspended(ctx, interpreter, step.suspended, steps, exited)
			ret, ok := res.Value()
			if !ok {
				abandon(step.suspended, steps, exited)
				ierr, _ := res.Err()
				return Err[T](ierr)
			}
			step.suspended.resumeCh <- ret.Value
		}
	}
}

// interpretSuspended releases the parked program if the interpreter breaks
// its contract and panics, so the program goroutine never outlives Run.
func interpretSuspended[T any](
	ctx context.Context,
	interpreter Interpreter,
	s *suspension,
	steps <-chan programStep[T],
	exited <-chan struct{},
) InterpretResult {
	defer func() {
		if r := recover(); r != nil {
			abandon(s, steps, exited)
			panic(r)
		}
	}()
	return interpreter.Interpret(ctx, s.eff)
}

// abandon unparks the program without a value, which makes it exit, and
// waits until it has. Effects yielded by its deferred calls are refused
// the same way.
func abandon[T any](s *suspension, steps <-chan programStep[T], exited <-chan struct{}) {
	close(s.resumeCh)
	for {
		select {
		case <-exited:
			return
		case step := <-steps:
			if step.suspended != nil {
				close(step.suspended.resumeCh)
			}
		}
	}
}

// drive runs program on the current goroutine, reporting every suspension,
// the final value or a panic on steps.
func drive[T any](program Program[T], steps chan<- programStep[T], exited chan<- struct{}) {
	defer close(exited)
	defer func() {
		// recover returns nil during runtime.Goexit, so an abandoned program
		// reports nothing.
		if r := recover(); r != nil {
			steps <- programStep[T]{panicked: true, panicValue: r}
		}
	}()

	value := program(func(eff Effect) any {
		s := &suspension{eff: eff, resumeCh: make(chan any, 1)}
		steps <- programStep[T]{suspended: s}
		outcome, ok := <-s.resumeCh
		if !ok {
			runtime.Goexit()
		}
		return outcome
	})

	steps <- programStep[T]{done: true, value: value}
}

// Pure lifts a value into a Program that never suspends.
func Pure[T any](value T) Program[T] {
	return func(Yield) T { return value }
}

// Single is a Program that yields eff once and returns its outcome as R.
func Single[R any](eff Effect) Program[R] {
	return func(yield Yield) R {
		return Perform[R](yield, eff)
	}
}
