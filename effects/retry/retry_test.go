package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
	"github.com/stretchr/testify/assert"
)

func TestPolicy_ClassifyMessage(t *testing.T) {
	tests := []struct {
		name   string
		policy retry.Policy
		msg    string
		want   bool
	}{
		{"db connection refused", retry.Database, "Connection refused by server", true},
		{"db duplicate key", retry.Database, "duplicate key value violates unique constraint", false},
		{"db unknown falls to default", retry.Database, "something odd", true},
		{"messaging topic missing", retry.Messaging, "topic_not_found", false},
		{"messaging queue full", retry.Messaging, "QUEUE_FULL", true},
		{"auth unknown falls to default", retry.Auth, "something odd", false},
		{"auth expired", retry.Auth, "token expired", false},
		{"storage throttled", retry.Storage, "request throttled", true},
		{"websocket closed", retry.WebSocket, "connection closed", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.ClassifyMessage(tt.msg))
		})
	}
}

func TestPolicy_NonRetryableWinsOverRetryable(t *testing.T) {
	// matches "timeout" and "invalid"
	msg := "invalid timeout value"
	for _, p := range []retry.Policy{retry.Cache, retry.Messaging, retry.Storage, retry.Auth, retry.Observability} {
		assert.False(t, p.ClassifyMessage(msg))
	}
}

func TestPolicy_IsDeterministic(t *testing.T) {
	err := errors.New("connection reset by peer")
	first := retry.Database.Classify(err)
	for range 100 {
		assert.Equal(t, first, retry.Database.Classify(err))
	}
}

func TestPolicy_Classify(t *testing.T) {
	assert.False(t, retry.Database.Classify(nil))

	assert.False(t, retry.Database.Classify(retry.Permanent(errors.New("connection lost"))),
		"permanent marker beats a retryable message")
	assert.True(t, retry.Auth.Classify(retry.Transient(errors.New("invalid state"))),
		"transient marker beats a non-retryable message")

	wrapped := fmt.Errorf("query: %w", context.DeadlineExceeded)
	assert.True(t, retry.Auth.Classify(wrapped))
	assert.False(t, retry.Database.Classify(fmt.Errorf("query: %w", context.Canceled)))
}

func TestMarkers(t *testing.T) {
	assert.NoError(t, retry.Transient(nil))
	assert.NoError(t, retry.Permanent(nil))

	cause := errors.New("cause")
	p := retry.Permanent(cause)
	assert.True(t, retry.IsPermanent(p))
	assert.ErrorIs(t, p, cause)
	assert.False(t, retry.IsPermanent(retry.Transient(cause)))

	assert.False(t, retry.Cache.Classify(retry.Permanent(retry.Transient(cause))), "outermost marker decides")
	assert.True(t, retry.Cache.Classify(fmt.Errorf("set: %w", retry.Transient(retry.Permanent(cause)))))
}
