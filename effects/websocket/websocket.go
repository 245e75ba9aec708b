// Package websocket holds the websocket effect family and its interpreter.
//
// One interpreter serves one connection. An interpreter without a
// connection still claims websocket effects and fails them, so a Program
// run outside a websocket session gets a clear error instead of a
// dispatch miss.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
)

const Name = "websocket"

// DefaultReceiveTimeout bounds ReceiveText effects that carry no timeout.
const DefaultReceiveTimeout = 30 * time.Second

// Connection is the capability of one open websocket.
type Connection interface {
	SendText(ctx context.Context, text string) error
	ReceiveText(ctx context.Context, timeout time.Duration) (Received, error)
	Close(ctx context.Context, code int, reason string) error
}

var ErrNoConnection = errors.New("no websocket connection")

type Interpreter struct {
	conn Connection
}

func NewInterpreter(conn Connection) *Interpreter {
	return &Interpreter{conn: conn}
}

func (i *Interpreter) Interpret(ctx context.Context, eff effects.Effect) effects.InterpretResult {
	e, ok := effects.Concrete(eff).(Effect)
	if !ok {
		return effects.Unhandled(eff, Name)
	}
	if i.conn == nil {
		return effects.Failed(effects.NewWebSocketError(eff, ErrNoConnection.Error(), false, ErrNoConnection))
	}

	var (
		res any
		err error
	)
	switch e := e.(type) {
	case SendText:
		res, err = effects.Safely(func() (Sent, error) {
			return Sent{Bytes: len(e.Text)}, i.conn.SendText(ctx, e.Text)
		})
	case ReceiveText:
		timeout := e.Timeout
		if timeout <= 0 {
			timeout = DefaultReceiveTimeout
		}
		res, err = effects.Safely(func() (Received, error) {
			return i.conn.ReceiveText(ctx, timeout)
		})
	case CloseConnection:
		res, err = effects.Safely(func() (Closed, error) {
			return Closed{Code: e.Code}, i.conn.Close(ctx, e.Code, e.Reason)
		})
	default:
		panic(fmt.Errorf("invalid websocket effect type: %T", e))
	}

	if err != nil {
		return effects.Failed(effects.NewWebSocketError(eff, err.Error(), retry.WebSocket.Classify(err), err))
	}
	return effects.Returned(eff, res)
}
