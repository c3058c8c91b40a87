package chat

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errTransportClosed = errors.New("transport closed")

// fakeTransport is an in-memory client stream. Tests feed inbound frames with
// send and observe outbound ones with next.
type fakeTransport struct {
	inbound  chan []byte
	outbound chan []byte
	closed   chan struct{}

	mu          sync.Mutex
	closeOnce   sync.Once
	closeCode   int
	closeReason string
	writeErr    error
	stalled     bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound:  make(chan []byte, 16),
		outbound: make(chan []byte, 1024),
		closed:   make(chan struct{}),
	}
}

func (f *fakeTransport) ReadFrame() ([]byte, error) {
	select {
	case frame, ok := <-f.inbound:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	case <-f.closed:
		return nil, errTransportClosed
	}
}

func (f *fakeTransport) WriteFrame(frame []byte) error {
	f.mu.Lock()
	err, stalled := f.writeErr, f.stalled
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if stalled {
		<-f.closed
		return errTransportClosed
	}
	select {
	case <-f.closed:
		return errTransportClosed
	default:
	}
	f.outbound <- frame
	return nil
}

func (f *fakeTransport) Ping() error { return nil }

func (f *fakeTransport) CloseWithCode(code int, reason string) error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closeCode = code
		f.closeReason = reason
		f.mu.Unlock()
		close(f.closed)
	})
	return nil
}

func (f *fakeTransport) failWrites(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

// stall makes every later write block until the transport is closed, like a
// client that stopped reading.
func (f *fakeTransport) stall() {
	f.mu.Lock()
	f.stalled = true
	f.mu.Unlock()
}

func (f *fakeTransport) send(t *testing.T, v any) {
	t.Helper()
	raw, ok := v.([]byte)
	if !ok {
		var err error
		raw, err = json.Marshal(v)
		require.NoError(t, err)
	}
	f.inbound <- raw
}

// hangUp ends the inbound stream as an abrupt disconnect would.
func (f *fakeTransport) hangUp() {
	close(f.inbound)
}

func (f *fakeTransport) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case raw := <-f.outbound:
		var ev map[string]any
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound frame")
		return nil
	}
}

func (f *fakeTransport) expectQuiet(t *testing.T) {
	t.Helper()
	select {
	case raw := <-f.outbound:
		t.Fatalf("unexpected frame: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func (f *fakeTransport) waitClosed(t *testing.T) (int, string) {
	t.Helper()
	select {
	case <-f.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCode, f.closeReason
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}
