package websocket

import (
	"time"

	"github.com/on-the-ground/effect_ive_runtime/effects"
)

// Effect is the sealed set of websocket effects.
type Effect interface {
	effects.Effect
	websocketEffect()
}

type SendText struct {
	Text string
}

func (SendText) EffectTag() string { return "SendText" }
func (SendText) websocketEffect()  {}

// ReceiveText waits at most Timeout for the next text frame.
type ReceiveText struct {
	Timeout time.Duration
}

func (ReceiveText) EffectTag() string { return "ReceiveText" }
func (ReceiveText) websocketEffect()  {}

type CloseConnection struct {
	Code   int
	Reason string
}

func (CloseConnection) EffectTag() string { return "CloseConnection" }
func (CloseConnection) websocketEffect()  {}

// Received is TextReceived, ReceiveTimeout or ConnectionClosed.
type Received interface {
	received()
}

type TextReceived struct {
	Text string
}

func (TextReceived) received() {}

type ReceiveTimeout struct {
	Timeout time.Duration
}

func (ReceiveTimeout) received() {}

// ConnectionClosed reports the peer's close frame.
type ConnectionClosed struct {
	Code   int
	Reason string
}

func (ConnectionClosed) received() {}

type Sent struct {
	Bytes int
}

type Closed struct {
	Code int
}
