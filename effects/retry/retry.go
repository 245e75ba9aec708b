// Package retry classifies interpreter failures as retryable or not.
//
// Classification is advisory only. The runtime never resubmits an effect;
// a caller that wants to retry runs a new program step.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Policy is the classification table of one domain.
//
// Non-retryable patterns take precedence over retryable ones, so a message
// matching both is never classified retryable.
type Policy struct {
	Retryable    []string
	NonRetryable []string
	Default      bool
}

// ClassifyMessage judges a failure message. Matching is case-insensitive.
func (p Policy) ClassifyMessage(msg string) bool {
	if matched, retryable := p.match(msg); matched {
		return retryable
	}
	return p.Default
}

// Classify judges err.
//
// Explicit Transient/Permanent markers win, the outermost one when err
// carries several. Then the message patterns apply,
// then structured hints from the error chain (deadline exceeded and network
// timeouts are retryable, cancellation is not), then the domain default.
func (p Policy) Classify(err error) bool {
	if err == nil {
		return false
	}
	if m, ok := marker(err); ok {
		return m.retryable
	}
	if matched, retryable := p.match(err.Error()); matched {
		return retryable
	}
	if retryable, known := structured(err); known {
		return retryable
	}
	return p.Default
}

func (p Policy) match(msg string) (matched, retryable bool) {
	lower := strings.ToLower(msg)
	for _, pattern := range p.NonRetryable {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true, false
		}
	}
	for _, pattern := range p.Retryable {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true, true
		}
	}
	return false, false
}

func structured(err error) (retryable, known bool) {
	switch {
	case errors.Is(err, context.Canceled):
		return false, true
	case errors.Is(err, context.DeadlineExceeded):
		return true, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true, true
	}
	return false, false
}

// Default policies. They are the compatibility baseline; backends with
// structured error codes should mark errors Transient or Permanent instead
// of relying on message text.
var (
	Database = Policy{
		Retryable: []string{
			"connection", "timeout", "timed out", "deadlock", "temporarily unavailable",
			"too many connections", "connection reset", "broken pipe",
		},
		NonRetryable: []string{
			"constraint", "duplicate key", "unique", "syntax error", "permission denied",
			"does not exist", "invalid input",
		},
		Default: true,
	}

	Cache = Policy{
		Retryable:    []string{"connection", "timeout", "timed out", "busy", "rejected", "unavailable"},
		NonRetryable: []string{"wrong type", "invalid", "serialization", "too large"},
		Default:      true,
	}

	Messaging = Policy{
		Retryable: []string{
			"timeout", "timed out", "connection", "unavailable", "queue_full",
			"producer busy", "temporarily",
		},
		NonRetryable: []string{
			"topic_not_found", "topic not found", "unknown message", "unknown delivery", "authorization",
			"unauthorized", "invalid", "too large", "closed",
		},
		Default: true,
	}

	Storage = Policy{
		Retryable:    []string{"timeout", "timed out", "connection", "throttl", "slow down", "unavailable"},
		NonRetryable: []string{"access denied", "no such bucket", "invalid", "forbidden", "too large"},
		Default:      true,
	}

	Auth = Policy{
		Retryable:    []string{"timeout", "timed out", "connection", "unavailable"},
		NonRetryable: []string{"signature", "malformed", "invalid", "expired", "revoked", "mismatch"},
		Default:      false,
	}

	Observability = Policy{
		Retryable:    []string{"timeout", "timed out", "connection", "unavailable"},
		NonRetryable: []string{"invalid", "duplicate", "unknown metric"},
		Default:      false,
	}

	RuntimeAssembly = Policy{
		Retryable:    []string{"timeout", "timed out", "connection refused", "unavailable"},
		NonRetryable: []string{"no callback", "invalid", "already", "not configured"},
		Default:      false,
	}

	WebSocket = Policy{
		Retryable:    []string{"timeout", "timed out", "temporar"},
		NonRetryable: []string{"closed", "close sent", "no websocket connection", "broken pipe"},
		Default:      false,
	}
)
