package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrUnsupportedFrame = errors.New("unsupported frame type")

// Transport is the client stream under a connection. ReadFrame is called from
// the connection's reader only; WriteFrame and Ping from its writer only.
// CloseWithCode may be called from either and must unblock a pending ReadFrame.
type Transport interface {
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
	Ping() error
	CloseWithCode(code int, reason string) error
}

type TransportOptions struct {
	MaxPayloadBytes int64
	WriteTimeout    time.Duration
	PongWait        time.Duration
}

type WebSocketTransport struct {
	conn      *websocket.Conn
	opts      TransportOptions
	closeOnce sync.Once
}

func NewWebSocketTransport(conn *websocket.Conn, opts TransportOptions) *WebSocketTransport {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.MaxPayloadBytes > 0 {
		conn.SetReadLimit(opts.MaxPayloadBytes)
	}
	t := &WebSocketTransport{conn: conn, opts: opts}
	if opts.PongWait > 0 {
		t.extendReadDeadline()
		conn.SetPongHandler(func(string) error {
			t.extendReadDeadline()
			return nil
		})
	}
	return t
}

func (t *WebSocketTransport) extendReadDeadline() {
	_ = t.conn.SetReadDeadline(time.Now().Add(t.opts.PongWait))
}

func (t *WebSocketTransport) ReadFrame() ([]byte, error) {
	mt, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if t.opts.PongWait > 0 {
		t.extendReadDeadline()
	}
	if mt != websocket.TextMessage {
		return nil, ErrUnsupportedFrame
	}
	return data, nil
}

func (t *WebSocketTransport) WriteFrame(frame []byte) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

func (t *WebSocketTransport) Ping() error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.opts.WriteTimeout))
}

func (t *WebSocketTransport) CloseWithCode(code int, reason string) error {
	var err error
	t.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.opts.WriteTimeout))
		err = t.conn.Close()
	})
	return err
}

// IsUnexpectedClose reports whether a read error is something other than the
// peer closing normally or going away.
func IsUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived)
}
