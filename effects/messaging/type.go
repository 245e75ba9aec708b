package messaging

import (
	"time"

	"github.com/on-the-ground/effect_ive_runtime/effects"
)

// Effect is the sealed set of messaging effects.
type Effect interface {
	effects.Effect
	messagingEffect()
}

type PublishMessage struct {
	Topic      string
	Payload    []byte
	Properties map[string]string
}

func (PublishMessage) EffectTag() string { return "PublishMessage" }
func (PublishMessage) messagingEffect()  {}

// ConsumeMessage waits at most Timeout for the next message of a
// subscription; a zero Timeout means the interpreter default.
type ConsumeMessage struct {
	Topic        string
	Subscription string
	Timeout      time.Duration
}

func (ConsumeMessage) EffectTag() string { return "ConsumeMessage" }
func (ConsumeMessage) messagingEffect()  {}

// AcknowledgeMessage settles one delivery; DeliveryID comes from the
// received MessageEnvelope.
type AcknowledgeMessage struct {
	DeliveryID string
}

func (AcknowledgeMessage) EffectTag() string { return "AcknowledgeMessage" }
func (AcknowledgeMessage) messagingEffect()  {}

// NegativeAcknowledge asks for redelivery after RedeliveryDelay.
type NegativeAcknowledge struct {
	DeliveryID      string
	RedeliveryDelay time.Duration
}

func (NegativeAcknowledge) EffectTag() string { return "NegativeAcknowledge" }
func (NegativeAcknowledge) messagingEffect()  {}

// PublishResult is PublishSuccess or PublishFailure.
type PublishResult interface {
	publishResult()
}

type PublishSuccess struct {
	MessageID string
	Topic     string
}

func (PublishSuccess) publishResult() {}

type PublishFailure struct {
	Topic  string
	Reason string
}

func (PublishFailure) publishResult() {}

// ConsumeResult is MessageEnvelope, ConsumeTimeout or ConsumeFailure.
type ConsumeResult interface {
	consumeResult()
}

type MessageEnvelope struct {
	MessageID string
	// DeliveryID identifies this receipt of the message by one
	// subscription. Every subscription of a topic receives the same
	// MessageID, each with its own DeliveryID.
	DeliveryID  string
	Topic       string
	Payload     []byte
	Properties  map[string]string
	PublishedAt time.Time
	// Redeliveries counts earlier negative acknowledgements.
	Redeliveries int
}

func (MessageEnvelope) consumeResult() {}

type ConsumeTimeout struct {
	Topic   string
	Timeout time.Duration
}

func (ConsumeTimeout) consumeResult() {}

type ConsumeFailure struct {
	Topic  string
	Reason string
}

func (ConsumeFailure) consumeResult() {}

type Acknowledged struct {
	DeliveryID string
}

type NegativelyAcknowledged struct {
	DeliveryID string
}
