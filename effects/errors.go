package effects

import (
	"errors"
	"fmt"
	"strings"
)

// InterpreterError is the failure side of every InterpretResult.
type InterpreterError interface {
	error
	// Effect returns the effect whose interpretation failed.
	Effect() Effect
	// Retryable is advisory: the runtime never retries on its own.
	Retryable() bool
}

var (
	_ InterpreterError = (*UnhandledEffectError)(nil)
	_ InterpreterError = (*DatabaseError)(nil)
	_ InterpreterError = (*CacheError)(nil)
	_ InterpreterError = (*MessagingError)(nil)
	_ InterpreterError = (*StorageError)(nil)
	_ InterpreterError = (*AuthError)(nil)
	_ InterpreterError = (*ObservabilityError)(nil)
	_ InterpreterError = (*RuntimeAssemblyError)(nil)
	_ InterpreterError = (*WebSocketError)(nil)
)

// UnhandledEffectError reports that no interpreter claimed an effect.
type UnhandledEffectError struct {
	Eff                   Effect
	AvailableInterpreters []string
}

func (e *UnhandledEffectError) Error() string {
	return fmt.Sprintf(
		"unhandled effect %s (tried: [%s])",
		TagOf(e.Eff), strings.Join(e.AvailableInterpreters, ", "),
	)
}

func (e *UnhandledEffectError) Effect() Effect  { return e.Eff }
func (e *UnhandledEffectError) Retryable() bool { return false }

// IsUnhandled reports whether err is, or wraps, an UnhandledEffectError.
func IsUnhandled(err error) bool {
	var unhandled *UnhandledEffectError
	return errors.As(err, &unhandled)
}

// failure is the common body of every domain error.
type failure struct {
	Eff         Effect
	Message     string
	IsRetryable bool
	Cause       error
}

func (f *failure) Effect() Effect  { return f.Eff }
func (f *failure) Retryable() bool { return f.IsRetryable }
func (f *failure) Unwrap() error   { return f.Cause }

func (f *failure) format(domain string) string {
	msg := fmt.Sprintf("%s error on %s: %s", domain, TagOf(f.Eff), f.Message)
	if f.IsRetryable {
		msg += " (retryable)"
	}
	return msg
}

func newFailure(eff Effect, message string, retryable bool, cause error) failure {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return failure{Eff: eff, Message: message, IsRetryable: retryable, Cause: cause}
}

type DatabaseError struct{ failure }

func NewDatabaseError(eff Effect, message string, retryable bool, cause error) *DatabaseError {
	return &DatabaseError{newFailure(eff, message, retryable, cause)}
}

func (e *DatabaseError) Error() string { return e.format("database") }

type CacheError struct{ failure }

func NewCacheError(eff Effect, message string, retryable bool, cause error) *CacheError {
	return &CacheError{newFailure(eff, message, retryable, cause)}
}

func (e *CacheError) Error() string { return e.format("cache") }

type MessagingError struct{ failure }

func NewMessagingError(eff Effect, message string, retryable bool, cause error) *MessagingError {
	return &MessagingError{newFailure(eff, message, retryable, cause)}
}

func (e *MessagingError) Error() string { return e.format("messaging") }

type StorageError struct{ failure }

func NewStorageError(eff Effect, message string, retryable bool, cause error) *StorageError {
	return &StorageError{newFailure(eff, message, retryable, cause)}
}

func (e *StorageError) Error() string { return e.format("storage") }

type AuthError struct{ failure }

func NewAuthError(eff Effect, message string, retryable bool, cause error) *AuthError {
	return &AuthError{newFailure(eff, message, retryable, cause)}
}

func (e *AuthError) Error() string { return e.format("auth") }

type ObservabilityError struct{ failure }

func NewObservabilityError(eff Effect, message string, retryable bool, cause error) *ObservabilityError {
	return &ObservabilityError{newFailure(eff, message, retryable, cause)}
}

func (e *ObservabilityError) Error() string { return e.format("observability") }

type RuntimeAssemblyError struct{ failure }

func NewRuntimeAssemblyError(eff Effect, message string, retryable bool, cause error) *RuntimeAssemblyError {
	return &RuntimeAssemblyError{newFailure(eff, message, retryable, cause)}
}

func (e *RuntimeAssemblyError) Error() string { return e.format("runtime assembly") }

type WebSocketError struct{ failure }

func NewWebSocketError(eff Effect, message string, retryable bool, cause error) *WebSocketError {
	return &WebSocketError{newFailure(eff, message, retryable, cause)}
}

func (e *WebSocketError) Error() string { return e.format("websocket") }
