package effects

// Result is either Ok(value) or Err(err), never both.
//
// It is the only propagation mechanism for expected failure across
// interpreter boundaries. The zero value is Ok with the zero T.
type Result[T, E any] struct {
	value T
	err   E
	isErr bool
}

func Ok[T, E any](value T) Result[T, E] {
	return Result[T, E]{value: value}
}

func Err[T, E any](err E) Result[T, E] {
	return Result[T, E]{err: err, isErr: true}
}

func (r Result[T, E]) IsOk() bool  { return !r.isErr }
func (r Result[T, E]) IsErr() bool { return r.isErr }

// Value returns the success value and true, or the zero T and false.
func (r Result[T, E]) Value() (T, bool) {
	if r.isErr {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Err returns the failure and true, or the zero E and false.
func (r Result[T, E]) Err() (E, bool) {
	if !r.isErr {
		var zero E
		return zero, false
	}
	return r.err, true
}

// Match folds r into a single value; both arms must be supplied.
func Match[T, E, R any](r Result[T, E], onOk func(T) R, onErr func(E) R) R {
	if r.isErr {
		return onErr(r.err)
	}
	return onOk(r.value)
}

// MapResult transforms the success value of r and leaves a failure untouched.
func MapResult[T, U, E any](r Result[T, E], fn func(T) U) Result[U, E] {
	if r.isErr {
		return Err[U](r.err)
	}
	return Ok[U, E](fn(r.value))
}
