package chat

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConnection_PushAndClose(t *testing.T) {
	req := require.New(t)
	c := newTestConn(7, 1, 1)

	req.NoError(c.Push([]byte("a")))
	req.ErrorIs(c.Push([]byte("b")), ErrSlowConsumer)

	req.True(c.Close(CloseNormal, "bye"))
	req.False(c.Close(CloseInternalError, "again"))
	req.ErrorIs(c.Push([]byte("c")), ErrConnectionClosed)

	code, reason := c.closeStatus()
	req.Equal(CloseNormal, code)
	req.Equal("bye", reason)
}

func TestWritePump_FlushesThenCloses(t *testing.T) {
	req := require.New(t)
	tr := newFakeTransport()
	c := NewConnection(tr, NewSession(), testIdentity(1, "alice"), 7, 8)

	req.NoError(c.Push([]byte(`{"n":1}`)))
	req.NoError(c.Push([]byte(`{"n":2}`)))
	c.Close(CloseGoingAway, "shutting down")

	go c.writePump(0, zap.NewNop())

	req.EqualValues(1, tr.next(t)["n"])
	req.EqualValues(2, tr.next(t)["n"])
	code, reason := tr.waitClosed(t)
	req.Equal(CloseGoingAway, code)
	req.Equal("shutting down", reason)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("writer did not finish")
	}
}

func TestWritePump_WriteErrorClosesConnection(t *testing.T) {
	req := require.New(t)
	tr := newFakeTransport()
	tr.failWrites(errors.New("broken pipe"))
	c := NewConnection(tr, NewSession(), testIdentity(1, "alice"), 7, 8)

	go c.writePump(0, zap.NewNop())
	req.NoError(c.Push([]byte(`{}`)))

	code, _ := tr.waitClosed(t)
	req.Equal(CloseInternalError, code)
	<-c.Done()
	req.ErrorIs(c.Push([]byte(`{}`)), ErrConnectionClosed)
}

func TestConnection_KillSkipsBacklog(t *testing.T) {
	req := require.New(t)
	tr := newFakeTransport()
	c := NewConnection(tr, NewSession(), testIdentity(1, "alice"), 7, 8)
	tr.stall()

	go c.writePump(0, zap.NewNop())
	req.NoError(c.Push([]byte(`{"n":1}`)))
	req.NoError(c.Push([]byte(`{"n":2}`)))

	c.Kill(CloseInternalError, "delivery failed")
	code, reason := tr.waitClosed(t)
	req.Equal(CloseInternalError, code)
	req.Equal("delivery failed", reason)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("writer still blocked after kill")
	}
	tr.expectQuiet(t)
	req.ErrorIs(c.Push([]byte(`{}`)), ErrConnectionClosed)
}
