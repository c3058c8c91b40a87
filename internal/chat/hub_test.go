package chat

import (
	"sync"
	"testing"

	"chat-gateway/internal/contract"

	"github.com/stretchr/testify/require"
)

func newTestConn(conversationID, userID int64, buffer int) *Connection {
	return NewConnection(newFakeTransport(), NewSession(),
		contract.Identity{UserID: userID, Username: "user"}, conversationID, buffer)
}

func TestRegistry_AdmitAndMembers(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	a := newTestConn(7, 1, 4)
	b := newTestConn(7, 2, 4)
	c := newTestConn(8, 3, 4)
	r.Admit(a)
	r.Admit(b)
	r.Admit(c)

	req.Equal(2, r.Count(7))
	req.Equal(1, r.Count(8))
	req.ElementsMatch([]*Connection{a, b}, r.MembersOf(7))
	req.ElementsMatch([]*Connection{c}, r.MembersOf(8))
	req.Empty(r.MembersOf(9))
	req.Equal(2, r.Rooms())
	req.Equal(3, r.Connections())
}

func TestRegistry_SnapshotIsStable(t *testing.T) {
	r := NewRegistry()
	a := newTestConn(7, 1, 4)
	r.Admit(a)

	snap := r.MembersOf(7)
	r.Admit(newTestConn(7, 2, 4))
	r.Evict(a)

	require.Equal(t, []*Connection{a}, snap)
}

func TestRegistry_EvictIsIdempotent(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	a := newTestConn(7, 1, 4)
	b := newTestConn(7, 2, 4)
	r.Admit(a)
	r.Admit(b)

	req.True(r.Evict(a))
	req.False(r.Evict(a))
	req.Equal(1, r.Count(7))

	req.False(r.Evict(newTestConn(99, 5, 4)))
}

func TestRegistry_EmptyRoomIsRemoved(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	a := newTestConn(7, 1, 4)
	r.Admit(a)
	req.Equal(1, r.Rooms())

	req.True(r.Evict(a))
	req.Equal(0, r.Count(7))
	req.Equal(0, r.Rooms())

	s := r.shardFor(7)
	_, ok := s.rooms[7]
	req.False(ok)
}

func TestRegistry_Drain(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 10; i++ {
		r.Admit(newTestConn(int64(i%3), int64(i), 4))
	}
	drained := r.Drain()
	require.Len(t, drained, 10)
	require.Equal(t, 0, r.Connections())
	require.Equal(t, 0, r.Rooms())
}

func TestRegistry_ConcurrentAdmitEvict(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newTestConn(int64(i%5), int64(i), 4)
			r.Admit(c)
			_ = r.MembersOf(c.ConversationID)
			_ = r.Count(c.ConversationID)
			if i%2 == 0 {
				r.Evict(c)
				r.Evict(c)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 100, r.Connections())
	total := 0
	for conv := int64(0); conv < 5; conv++ {
		total += r.Count(conv)
	}
	require.Equal(t, 100, total)
}
