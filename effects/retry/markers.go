package retry

import "errors"

// marked carries a classification decided by the code that produced err.
// Markers are checked before any message pattern.
type marked struct {
	err       error
	retryable bool
}

func (m *marked) Error() string {
	if m.retryable {
		return "transient: " + m.err.Error()
	}
	return "permanent: " + m.err.Error()
}

func (m *marked) Unwrap() error { return m.err }

// Transient marks err as worth resubmitting. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &marked{err: err, retryable: true}
}

// Permanent marks err as final. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &marked{err: err}
}

func IsPermanent(err error) bool {
	m, ok := marker(err)
	return ok && !m.retryable
}

// marker returns the outermost marker wrapped in err.
func marker(err error) (*marked, bool) {
	var m *marked
	if errors.As(err, &m) {
		return m, true
	}
	return nil, false
}
