package chat

import (
	"errors"
	"sync"
	"time"

	"chat-gateway/internal/contract"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSlowConsumer     = errors.New("outbound buffer full")
)

// Connection is one admitted client in one conversation. Frames reach the
// client only through its outbound queue, drained by writePump.
type Connection struct {
	ID             uuid.UUID
	ConversationID int64
	UserID         int64
	Username       string

	session   *Session
	transport Transport

	mu          sync.Mutex
	send        chan []byte
	closed      bool
	closeCode   int
	closeReason string
	done        chan struct{}
}

func NewConnection(t Transport, session *Session, identity contract.Identity, conversationID int64, buffer int) *Connection {
	if buffer < 1 {
		buffer = 1
	}
	return &Connection{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         identity.UserID,
		Username:       identity.Username,
		session:        session,
		transport:      t,
		send:           make(chan []byte, buffer),
		done:           make(chan struct{}),
	}
}

func (c *Connection) Session() *Session { return c.session }

// Push queues a frame without blocking. A full queue is reported as
// ErrSlowConsumer so the caller can evict instead of waiting on one peer.
func (c *Connection) Push(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close stops accepting frames. The writer flushes what is queued, then closes
// the transport with code. Only the first call has an effect.
func (c *Connection) Close(code int, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
	return true
}

// Kill closes the connection without flushing: queued frames are dropped and the
// transport is closed at once, which also ends a pending read. The close frame
// is written in the background so a stalled writer cannot block the caller.
func (c *Connection) Kill(code int, reason string) {
	c.Close(code, reason)
	code, reason = c.closeStatus()
	go func() { _ = c.transport.CloseWithCode(code, reason) }()
}

func (c *Connection) closeStatus() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason
}

// Done is closed once the writer has closed the transport.
func (c *Connection) Done() <-chan struct{} { return c.done }

func (c *Connection) writePump(pingPeriod time.Duration, log *zap.Logger) {
	var tick <-chan time.Time
	if pingPeriod > 0 {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer close(c.done)

	fail := func(err error) {
		log.Debug("write failed",
			zap.String("connection_id", c.ID.String()),
			zap.Int64("user_id", c.UserID),
			zap.Error(err))
		c.Close(CloseInternalError, "write failed")
		_ = c.transport.CloseWithCode(CloseInternalError, "write failed")
	}

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				code, reason := c.closeStatus()
				_ = c.transport.CloseWithCode(code, reason)
				return
			}
			if err := c.transport.WriteFrame(frame); err != nil {
				fail(err)
				return
			}

		case <-tick:
			if err := c.transport.Ping(); err != nil {
				fail(err)
				return
			}
		}
	}
}
