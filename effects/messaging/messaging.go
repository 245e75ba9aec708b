// Package messaging holds the messaging effect family and its interpreter.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
)

const Name = "messaging"

// DefaultConsumeTimeout bounds ConsumeMessage effects that carry no timeout.
const DefaultConsumeTimeout = 5 * time.Second

// Producer publishes messages to topics.
type Producer interface {
	Publish(ctx context.Context, topic string, payload []byte, properties map[string]string) (PublishResult, error)
}

// Consumer receives and settles messages.
//
// Receive must return ConsumeTimeout rather than block past timeout.
// Settlement is per delivery, keyed by MessageEnvelope.DeliveryID.
type Consumer interface {
	Receive(ctx context.Context, topic, subscription string, timeout time.Duration) (ConsumeResult, error)
	Acknowledge(ctx context.Context, deliveryID string) error
	NegativeAcknowledge(ctx context.Context, deliveryID string, redeliveryDelay time.Duration) error
}

var ErrNilClient = errors.New("messaging: nil producer or consumer")

type Interpreter struct {
	producer       Producer
	consumer       Consumer
	consumeTimeout time.Duration
}

type Option func(*Interpreter)

func WithConsumeTimeout(timeout time.Duration) Option {
	return func(i *Interpreter) { i.consumeTimeout = timeout }
}

func NewInterpreter(producer Producer, consumer Consumer, opts ...Option) (*Interpreter, error) {
	if producer == nil || consumer == nil {
		return nil, ErrNilClient
	}
	i := &Interpreter{producer: producer, consumer: consumer, consumeTimeout: DefaultConsumeTimeout}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func (i *Interpreter) Interpret(ctx context.Context, eff effects.Effect) effects.InterpretResult {
	e, ok := effects.Concrete(eff).(Effect)
	if !ok {
		return effects.Unhandled(eff, Name)
	}

	switch e := e.(type) {
	case PublishMessage:
		res, err := effects.Safely(func() (PublishResult, error) {
			return i.producer.Publish(ctx, e.Topic, e.Payload, e.Properties)
		})
		if err != nil {
			return i.fail(eff, err)
		}
		if failure, failed := res.(PublishFailure); failed {
			return i.failWith(eff, fmt.Sprintf("publish to %s failed: %s", failure.Topic, failure.Reason), failure.Reason)
		}
		return effects.Returned(eff, res)

	case ConsumeMessage:
		timeout := e.Timeout
		if timeout <= 0 {
			timeout = i.consumeTimeout
		}
		res, err := effects.Safely(func() (ConsumeResult, error) {
			return i.consumer.Receive(ctx, e.Topic, e.Subscription, timeout)
		})
		if err != nil {
			return i.fail(eff, err)
		}
		if failure, failed := res.(ConsumeFailure); failed {
			return i.failWith(eff, fmt.Sprintf("consume from %s failed: %s", failure.Topic, failure.Reason), failure.Reason)
		}
		return effects.Returned(eff, res)

	case AcknowledgeMessage:
		if _, err := effects.Safely(func() (struct{}, error) {
			return struct{}{}, i.consumer.Acknowledge(ctx, e.DeliveryID)
		}); err != nil {
			return i.fail(eff, err)
		}
		return effects.Returned(eff, Acknowledged{DeliveryID: e.DeliveryID})

	case NegativeAcknowledge:
		if _, err := effects.Safely(func() (struct{}, error) {
			return struct{}{}, i.consumer.NegativeAcknowledge(ctx, e.DeliveryID, e.RedeliveryDelay)
		}); err != nil {
			return i.fail(eff, err)
		}
		return effects.Returned(eff, NegativelyAcknowledged{DeliveryID: e.DeliveryID})

	default:
		panic(fmt.Errorf("invalid messaging effect type: %T", e))
	}
}

func (i *Interpreter) fail(eff effects.Effect, err error) effects.InterpretResult {
	return effects.Failed(effects.NewMessagingError(eff, err.Error(), retry.Messaging.Classify(err), err))
}

// failWith reports a broker-side refusal, classified from its reason code.
func (i *Interpreter) failWith(eff effects.Effect, message, reason string) effects.InterpretResult {
	return effects.Failed(effects.NewMessagingError(eff, message, retry.Messaging.ClassifyMessage(reason), nil))
}
