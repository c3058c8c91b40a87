package chat

import (
	"encoding/json"
	"testing"

	"chat-gateway/internal/contract"
	"chat-gateway/internal/types"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// queued drains whatever is sitting in a connection's outbound queue.
func queued(t *testing.T, c *Connection) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return out
			}
			var ev map[string]any
			require.NoError(t, json.Unmarshal(raw, &ev))
			out = append(out, ev)
		default:
			return out
		}
	}
}

func admitted(r *Registry, conversationID, userID int64, name string, buffer int) *Connection {
	c := NewConnection(newFakeTransport(), NewSession(),
		contract.Identity{UserID: userID, Username: name}, conversationID, buffer)
	_ = c.session.Transition(StateActive)
	r.Admit(c)
	return c
}

func TestBroadcast_RoomIsolation(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r, zap.NewNop())
	in7 := admitted(r, 7, 1, "alice", 8)
	in8 := admitted(r, 8, 2, "bob", 8)

	b.Broadcast(7, types.NewErrorEvent("only seven"), nil)

	require.Len(t, queued(t, in7), 1)
	require.Empty(t, queued(t, in8))
}

func TestBroadcast_Exclude(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r, zap.NewNop())
	a := admitted(r, 7, 1, "alice", 8)
	c := admitted(r, 7, 2, "bob", 8)

	b.Broadcast(7, types.NewErrorEvent("hello"), a)

	require.Empty(t, queued(t, a))
	require.Len(t, queued(t, c), 1)
}

func TestBroadcast_FailedPeerIsEvictedOnce(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	b := NewBroadcaster(r, zap.NewNop())

	a := admitted(r, 7, 1, "alice", 8)
	slow := admitted(r, 7, 2, "bob", 1)
	c := admitted(r, 7, 3, "carol", 8)
	req.NoError(slow.Push([]byte(`{}`)))

	b.Broadcast(7, types.NewErrorEvent("hi"), nil)

	req.Equal(2, r.Count(7))
	req.NotContains(r.MembersOf(7), slow)
	req.Equal(StateClosing, slow.session.State())
	code, _ := slow.closeStatus()
	req.Equal(CloseInternalError, code)
	code, _ = slow.transport.(*fakeTransport).waitClosed(t)
	req.Equal(CloseInternalError, code, "transport is closed without waiting for a flush")

	for _, peer := range []*Connection{a, c} {
		events := queued(t, peer)
		req.Len(events, 2)
		req.Equal("error", events[0]["type"])
		req.Equal("user_left", events[1]["type"])
		req.EqualValues(2, events[1]["user_id"])
		req.Equal("bob", events[1]["username"])
	}
}

func TestBroadcast_ClosedPeerIsEvicted(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r, zap.NewNop())
	a := admitted(r, 7, 1, "alice", 8)
	gone := admitted(r, 7, 2, "bob", 8)
	gone.Close(CloseNormal, "")

	b.Broadcast(7, types.NewErrorEvent("hi"), nil)

	require.Equal(t, 1, r.Count(7))
	events := queued(t, a)
	require.Len(t, events, 2)
	require.Equal(t, "user_left", events[1]["type"])
}

func TestBroadcast_CascadingFailures(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	b := NewBroadcaster(r, zap.NewNop())

	a := admitted(r, 7, 1, "alice", 8)
	s1 := admitted(r, 7, 2, "bob", 1)
	s2 := admitted(r, 7, 3, "carol", 1)
	req.NoError(s1.Push([]byte(`{}`)))
	req.NoError(s2.Push([]byte(`{}`)))

	b.Broadcast(7, types.NewErrorEvent("hi"), nil)

	req.Equal([]*Connection{a}, r.MembersOf(7))
	events := queued(t, a)
	req.Len(events, 3)
	left := map[float64]int{}
	for _, ev := range events[1:] {
		req.Equal("user_left", ev["type"])
		left[ev["user_id"].(float64)]++
	}
	req.Equal(map[float64]int{2: 1, 3: 1}, left)
}

func TestEvict_IsIdempotent(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	b := NewBroadcaster(r, zap.NewNop())
	a := admitted(r, 7, 1, "alice", 8)
	leaving := admitted(r, 7, 2, "bob", 8)

	req.True(b.Evict(leaving, CloseNormal, ""))
	req.False(b.Evict(leaving, CloseNormal, ""))

	events := queued(t, a)
	req.Len(events, 1)
	req.Equal("user_left", events[0]["type"])
}

func TestEvict_LastMemberCleansRoom(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r, zap.NewNop())
	only := admitted(r, 7, 1, "alice", 8)

	require.True(t, b.Evict(only, CloseNormal, ""))
	require.Equal(t, 0, r.Count(7))
	require.Equal(t, 0, r.Rooms())
}
