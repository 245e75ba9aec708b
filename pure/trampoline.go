// Package pure holds stack-safe evaluation helpers for pure code.
//
// A Trampoline turns deep recursion into a loop: instead of calling itself,
// a step returns Continue with a thunk producing the next step, and Run
// bounces until a Done step appears. Stack depth stays constant however
// many steps are taken.
package pure

import "context"

// Trampoline is either Done(value) or Continue(next).
type Trampoline[T any] struct {
	value T
	next  func() Trampoline[T]
}

func Done[T any](value T) Trampoline[T] {
	return Trampoline[T]{value: value}
}

// Continue defers the rest of the computation to next. A nil next is
// treated as Done with the zero value.
func Continue[T any](next func() Trampoline[T]) Trampoline[T] {
	return Trampoline[T]{next: next}
}

func (t Trampoline[T]) IsDone() bool { return t.next == nil }

// Run bounces t until it is done.
func Run[T any](t Trampoline[T]) T {
	for t.next != nil {
		t = t.next()
	}
	return t.value
}

// AsyncTrampoline is a Trampoline whose steps may block and fail.
type AsyncTrampoline[T any] struct {
	value T
	next  func(ctx context.Context) (AsyncTrampoline[T], error)
}

func DoneAsync[T any](value T) AsyncTrampoline[T] {
	return AsyncTrampoline[T]{value: value}
}

func ContinueAsync[T any](next func(ctx context.Context) (AsyncTrampoline[T], error)) AsyncTrampoline[T] {
	return AsyncTrampoline[T]{next: next}
}

func (t AsyncTrampoline[T]) IsDone() bool { return t.next == nil }

// RunAsync bounces t until it is done, a step fails, or ctx is done.
// ctx is checked before every bounce.
func RunAsync[T any](ctx context.Context, t AsyncTrampoline[T]) (T, error) {
	var zero T
	for t.next != nil {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		next, err := t.next(ctx)
		if err != nil {
			return zero, err
		}
		t = next
	}
	return t.value, nil
}
