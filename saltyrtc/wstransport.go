package saltyrtc

import (
	"context"
	"fmt"
	"sync"

	"nhooyr.io/websocket"
)

// wsTransport adapts an nhooyr.io/websocket connection to Transport. Every
// frame — handshake, control, or relay — travels as one binary WebSocket
// message; the protocol core never sends text frames.
type wsTransport struct {
	conn *websocket.Conn

	closeOnce sync.Once
	done      chan struct{}
}

// newWSTransport wraps an already-accepted WebSocket connection.
func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn, done: make(chan struct{})}
}

func (t *wsTransport) Send(ctx context.Context, data []byte) error {
	if err := t.conn.Write(ctx, websocket.MessageBinary, data); err != nil {
		t.markDone()
		return err
	}
	return nil
}

func (t *wsTransport) Receive(ctx context.Context) ([]byte, error) {
	typ, data, err := t.conn.Read(ctx)
	if err != nil {
		t.markDone()
		return nil, err
	}
	if typ != websocket.MessageBinary {
		return nil, fmt.Errorf("unexpected websocket message type %v, want binary", typ)
	}
	return data, nil
}

func (t *wsTransport) Ping(ctx context.Context) error {
	if err := t.conn.Ping(ctx); err != nil {
		t.markDone()
		return err
	}
	return nil
}

func (t *wsTransport) Close(code CloseCode, reason string) error {
	defer t.markDone()
	return t.conn.Close(websocket.StatusCode(code), reason)
}

func (t *wsTransport) Done() <-chan struct{} { return t.done }

func (t *wsTransport) markDone() {
	t.closeOnce.Do(func() { close(t.done) })
}
