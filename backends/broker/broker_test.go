package broker_test

import (
	"context"
	"testing"
	"time"

	"github.com/on-the-ground/effect_ive_runtime/backends/broker"
	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/messaging"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, b *broker.Broker, sub string, timeout time.Duration) messaging.ConsumeResult {
	t.Helper()
	res, err := b.Receive(context.Background(), "chat", sub, timeout)
	require.NoError(t, err)
	return res
}

func TestPublish_UnknownTopic(t *testing.T) {
	b := broker.New(nil)
	defer b.Close()

	res, err := b.Publish(context.Background(), "missing", []byte("x"), nil)

	require.NoError(t, err)
	assert.Equal(t, messaging.PublishFailure{Topic: "missing", Reason: broker.ReasonTopicNotFound}, res)
}

func TestEverySubscriptionGetsEveryMessage(t *testing.T) {
	b := broker.New([]string{"chat"})
	defer b.Close()

	_, err := b.Publish(context.Background(), "chat", []byte("hi"), map[string]string{"k": "v"})
	require.NoError(t, err)

	for _, sub := range []string{"a", "b"} {
		env, ok := receive(t, b, sub, time.Second).(messaging.MessageEnvelope)
		require.True(t, ok, sub)
		assert.Equal(t, []byte("hi"), env.Payload)
		assert.Equal(t, "v", env.Properties["k"])
	}
	assert.Equal(t, 2, b.InFlight())
}

func TestSettlementIsPerSubscription(t *testing.T) {
	b := broker.New([]string{"chat"})
	defer b.Close()
	_, err := b.Publish(context.Background(), "chat", []byte("hi"), nil)
	require.NoError(t, err)

	a := receive(t, b, "a", time.Second).(messaging.MessageEnvelope)
	c := receive(t, b, "c", time.Second).(messaging.MessageEnvelope)
	require.Equal(t, a.MessageID, c.MessageID)
	require.NotEqual(t, a.DeliveryID, c.DeliveryID)

	require.NoError(t, b.NegativeAcknowledge(context.Background(), c.DeliveryID, 0))
	require.NoError(t, b.Acknowledge(context.Background(), a.DeliveryID))

	assert.IsType(t, messaging.ConsumeTimeout{}, receive(t, b, "a", time.Millisecond))
	again := receive(t, b, "c", time.Second).(messaging.MessageEnvelope)
	assert.Equal(t, c.MessageID, again.MessageID)
	assert.Equal(t, 1, again.Redeliveries)
	require.NoError(t, b.Acknowledge(context.Background(), again.DeliveryID))
	assert.Zero(t, b.InFlight())
}

func TestReceive_TimesOut(t *testing.T) {
	b := broker.New([]string{"chat"})
	defer b.Close()

	res := receive(t, b, "a", 10*time.Millisecond)

	assert.Equal(t, messaging.ConsumeTimeout{Topic: "chat", Timeout: 10 * time.Millisecond}, res)
}

func TestReceive_WakesOnPublish(t *testing.T) {
	b := broker.New([]string{"chat"})
	defer b.Close()
	receive(t, b, "a", time.Millisecond) // creates the subscription

	got := make(chan messaging.ConsumeResult, 1)
	go func() {
		res, _ := b.Receive(context.Background(), "chat", "a", 5*time.Second)
		got <- res
	}()
	_, err := b.Publish(context.Background(), "chat", []byte("late"), nil)
	require.NoError(t, err)

	select {
	case res := <-got:
		assert.IsType(t, messaging.MessageEnvelope{}, res)
	case <-time.After(5 * time.Second):
		t.Fatal("receiver was not woken")
	}
}

func TestAcknowledge(t *testing.T) {
	b := broker.New([]string{"chat"})
	defer b.Close()
	_, err := b.Publish(context.Background(), "chat", []byte("x"), nil)
	require.NoError(t, err)
	env := receive(t, b, "a", time.Second).(messaging.MessageEnvelope)

	require.NoError(t, b.Acknowledge(context.Background(), env.DeliveryID))
	assert.Zero(t, b.InFlight())

	err = b.Acknowledge(context.Background(), env.DeliveryID)
	assert.ErrorIs(t, err, broker.ErrUnknownDelivery)
	assert.True(t, retry.IsPermanent(err))
}

func TestNegativeAcknowledge_Redelivers(t *testing.T) {
	b := broker.New([]string{"chat"})
	defer b.Close()
	_, err := b.Publish(context.Background(), "chat", []byte("x"), nil)
	require.NoError(t, err)
	first := receive(t, b, "a", time.Second).(messaging.MessageEnvelope)

	require.NoError(t, b.NegativeAcknowledge(context.Background(), first.DeliveryID, 0))
	again := receive(t, b, "a", time.Second).(messaging.MessageEnvelope)
	assert.Equal(t, first.MessageID, again.MessageID)
	assert.NotEqual(t, first.DeliveryID, again.DeliveryID)
	assert.Equal(t, 1, again.Redeliveries)

	require.NoError(t, b.NegativeAcknowledge(context.Background(), again.DeliveryID, 20*time.Millisecond))
	assert.IsType(t, messaging.ConsumeTimeout{}, receive(t, b, "a", time.Millisecond))
	delayed := receive(t, b, "a", 5*time.Second).(messaging.MessageEnvelope)
	assert.Equal(t, 2, delayed.Redeliveries)
}

func TestRetention(t *testing.T) {
	b := broker.New([]string{"chat"}, broker.WithRetention(2))
	defer b.Close()
	for _, p := range []string{"1", "2", "3"} {
		_, err := b.Publish(context.Background(), "chat", []byte(p), nil)
		require.NoError(t, err)
	}

	first := receive(t, b, "late", time.Second).(messaging.MessageEnvelope)
	assert.Equal(t, []byte("2"), first.Payload)
}

func TestClose(t *testing.T) {
	b := broker.New([]string{"chat"})
	b.Close()
	b.Close()

	res := receive(t, b, "a", time.Second)
	assert.Equal(t, messaging.ConsumeFailure{Topic: "chat", Reason: broker.ReasonClosed}, res)
}

func TestThroughMessagingInterpreter(t *testing.T) {
	b := broker.New([]string{"chat"})
	defer b.Close()
	in, err := messaging.NewInterpreter(b, b)
	require.NoError(t, err)

	prog := func(yield effects.Yield) string {
		effects.Perform[messaging.PublishResult](yield, messaging.PublishMessage{Topic: "chat", Payload: []byte("ping")})
		got := effects.Perform[messaging.ConsumeResult](yield, messaging.ConsumeMessage{
			Topic: "chat", Subscription: "s", Timeout: time.Second,
		})
		env := got.(messaging.MessageEnvelope)
		effects.Perform[messaging.Acknowledged](yield, messaging.AcknowledgeMessage{DeliveryID: env.DeliveryID})
		return string(env.Payload)
	}
	res := effects.Run(context.Background(), prog, in)

	v, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, "ping", v)

	ierr, failed := in.Interpret(context.Background(), messaging.PublishMessage{Topic: "nope"}).Err()
	require.True(t, failed)
	assert.False(t, ierr.Retryable())
}
