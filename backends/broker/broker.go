// Package broker is an in-process topic/subscription message broker
// implementing the messaging Producer and Consumer capabilities.
//
// Every subscription of a topic receives every message published to it.
// A new subscription starts from the messages the topic still retains.
// Each receive is a delivery with its own DeliveryID, in flight until it is
// acknowledged; a negative acknowledgement puts the message back on the
// subscription it was delivered to, after an optional delay.
package broker

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/effects/messaging"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
	"go.uber.org/zap"
)

var (
	_ messaging.Producer = (*Broker)(nil)
	_ messaging.Consumer = (*Broker)(nil)
)

const (
	ReasonTopicNotFound = "topic_not_found"
	ReasonClosed        = "broker closed"
)

// DefaultRetention is the number of messages a topic keeps for
// subscriptions created later.
const DefaultRetention = 1024

var ErrUnknownDelivery = errors.New("broker: unknown delivery")

type Broker struct {
	mu        sync.Mutex
	topics    map[string]*topic
	inflight  map[string]delivery
	timers    map[*time.Timer]struct{}
	retention int
	now       func() time.Time
	done      chan struct{}
	closed    bool
	logger    *zap.Logger
}

type topic struct {
	name string
	log  []messaging.MessageEnvelope
	subs map[string]*subscription
}

type subscription struct {
	pending []messaging.MessageEnvelope
	// ready holds at most one wake-up for waiting receivers.
	ready chan struct{}
}

type delivery struct {
	sub *subscription
	env messaging.MessageEnvelope
}

type Option func(*Broker)

func WithRetention(n int) Option {
	return func(b *Broker) { b.retention = n }
}

func WithClock(now func() time.Time) Option {
	return func(b *Broker) { b.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *Broker) { b.logger = logger }
}

// New creates a broker serving the given topics.
func New(topics []string, opts ...Option) *Broker {
	b := &Broker{
		topics:    make(map[string]*topic, len(topics)),
		inflight:  make(map[string]delivery),
		timers:    make(map[*time.Timer]struct{}),
		retention: DefaultRetention,
		now:       func() time.Time { return time.Now().UTC() },
		done:      make(chan struct{}),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, name := range topics {
		b.CreateTopic(name)
	}
	return b
}

// CreateTopic adds a topic; creating an existing topic is a no-op.
func (b *Broker) CreateTopic(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[name]; !ok {
		b.topics[name] = &topic{name: name, subs: make(map[string]*subscription)}
	}
}

func (b *Broker) Publish(
	_ context.Context,
	topicName string,
	payload []byte,
	properties map[string]string,
) (messaging.PublishResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return messaging.PublishFailure{Topic: topicName, Reason: ReasonClosed}, nil
	}
	t, ok := b.topics[topicName]
	if !ok {
		return messaging.PublishFailure{Topic: topicName, Reason: ReasonTopicNotFound}, nil
	}

	env := messaging.MessageEnvelope{
		MessageID:   uuid.NewString(),
		Topic:       topicName,
		Payload:     append([]byte(nil), payload...),
		Properties:  maps.Clone(properties),
		PublishedAt: b.now(),
	}
	t.log = append(t.log, env)
	if over := len(t.log) - b.retention; over > 0 {
		t.log = t.log[over:]
	}
	for _, sub := range t.subs {
		sub.push(env)
	}
	b.logger.Debug("message published",
		zap.String("topic", topicName), zap.String("message_id", env.MessageID))
	return messaging.PublishSuccess{MessageID: env.MessageID, Topic: topicName}, nil
}

// Receive blocks until a message is available on the subscription, the
// timeout elapses, ctx is done or the broker is closed.
func (b *Broker) Receive(
	ctx context.Context,
	topicName, subscriptionName string,
	timeout time.Duration,
) (messaging.ConsumeResult, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return messaging.ConsumeFailure{Topic: topicName, Reason: ReasonClosed}, nil
		}
		t, ok := b.topics[topicName]
		if !ok {
			b.mu.Unlock()
			return messaging.ConsumeFailure{Topic: topicName, Reason: ReasonTopicNotFound}, nil
		}
		sub := t.subscription(subscriptionName)
		if env, ok := sub.pop(); ok {
			env.DeliveryID = uuid.NewString()
			b.inflight[env.DeliveryID] = delivery{sub: sub, env: env}
			b.mu.Unlock()
			return env, nil
		}
		ready := sub.ready
		b.mu.Unlock()

		select {
		case <-ready:
		case <-timer.C:
			return messaging.ConsumeTimeout{Topic: topicName, Timeout: timeout}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.done:
		}
	}
}

func (b *Broker) Acknowledge(_ context.Context, deliveryID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.inflight[deliveryID]; !ok {
		return retry.Permanent(fmt.Errorf("%w: %s", ErrUnknownDelivery, deliveryID))
	}
	delete(b.inflight, deliveryID)
	return nil
}

// NegativeAcknowledge returns an in-flight message to the subscription it
// was delivered to after delay. The next receive is a new delivery.
func (b *Broker) NegativeAcknowledge(_ context.Context, deliveryID string, delay time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.inflight[deliveryID]
	if !ok {
		return retry.Permanent(fmt.Errorf("%w: %s", ErrUnknownDelivery, deliveryID))
	}
	delete(b.inflight, deliveryID)
	d.env.DeliveryID = ""
	d.env.Redeliveries++

	if delay <= 0 {
		d.sub.pushFront(d.env)
		return nil
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.timers, timer)
		if !b.closed {
			d.sub.pushFront(d.env)
		}
	})
	b.timers[timer] = struct{}{}
	return nil
}

// InFlight reports how many deliveries await settlement.
func (b *Broker) InFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inflight)
}

// Close stops pending redeliveries and wakes all receivers.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for timer := range b.timers {
		timer.Stop()
	}
	clear(b.timers)
	close(b.done)
}

func (t *topic) subscription(name string) *subscription {
	sub, ok := t.subs[name]
	if !ok {
		sub = &subscription{
			pending: append([]messaging.MessageEnvelope(nil), t.log...),
			ready:   make(chan struct{}, 1),
		}
		t.subs[name] = sub
	}
	return sub
}

func (s *subscription) push(env messaging.MessageEnvelope) {
	s.pending = append(s.pending, env)
	s.wake()
}

func (s *subscription) pushFront(env messaging.MessageEnvelope) {
	s.pending = append([]messaging.MessageEnvelope{env}, s.pending...)
	s.wake()
}

func (s *subscription) pop() (messaging.MessageEnvelope, bool) {
	if len(s.pending) == 0 {
		return messaging.MessageEnvelope{}, false
	}
	env := s.pending[0]
	s.pending = s.pending[1:]
	if len(s.pending) > 0 {
		s.wake()
	}
	return env, true
}

func (s *subscription) wake() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}
