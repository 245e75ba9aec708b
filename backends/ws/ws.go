// Package ws adapts gorilla/websocket connections to the websocket
// Connection capability.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	effectws "github.com/on-the-ground/effect_ive_runtime/effects/websocket"
)

var _ effectws.Connection = (*Conn)(nil)

const writeTimeout = 5 * time.Second

var ErrConnectionClosed = errors.New("ws: connection closed")

type frame struct {
	text string
	err  error
}

// Conn reads frames on its own goroutine, so a receive timeout leaves the
// connection usable. gorilla/websocket allows one concurrent reader and
// one concurrent writer; writes are serialized here.
type Conn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	frames  chan frame
	done    chan struct{}
	// last holds the terminal read error once frames is closed.
	last      frame
	closeOnce sync.Once
}

func NewConn(conn *websocket.Conn) *Conn {
	c := &Conn{conn: conn, frames: make(chan frame, 16), done: make(chan struct{})}
	go c.readLoop()
	return c
}

// Upgrade upgrades an HTTP request to a websocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader) (*Conn, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(conn), nil
}

func Dial(ctx context.Context, url string) (*Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(conn), nil
}

func (c *Conn) readLoop() {
	defer close(c.frames)
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			c.deliver(frame{err: err})
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		if !c.deliver(frame{text: string(data)}) {
			return
		}
	}
}

func (c *Conn) deliver(f frame) bool {
	select {
	case c.frames <- f:
		return true
	case <-c.done:
		return false
	}
}

func (c *Conn) SendText(_ context.Context, text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *Conn) ReceiveText(ctx context.Context, timeout time.Duration) (effectws.Received, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f, ok := <-c.frames:
		if !ok {
			f = c.last
			if f.err == nil {
				f.err = ErrConnectionClosed
			}
		}
		if f.err == nil {
			return effectws.TextReceived{Text: f.text}, nil
		}
		c.last = f
		var closeErr *websocket.CloseError
		if errors.As(f.err, &closeErr) {
			return effectws.ConnectionClosed{Code: closeErr.Code, Reason: closeErr.Text}, nil
		}
		return nil, f.err
	case <-timer.C:
		return effectws.ReceiveTimeout{Timeout: timeout}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close sends a close frame with code and reason, then closes the
// underlying connection. Closing twice is a no-op.
func (c *Conn) Close(_ context.Context, code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		defer close(c.done)
		c.writeMu.Lock()
		werr := c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(writeTimeout))
		c.writeMu.Unlock()
		if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			err = werr
		}
		if cerr := c.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}
