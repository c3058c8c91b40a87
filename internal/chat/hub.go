package chat

import (
	"sync"

	"chat-gateway/internal/hashing"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	registryShards = 32
	ringReplicas   = 64
)

type room map[uuid.UUID]*Connection

type shard struct {
	mu    sync.RWMutex
	rooms map[int64]room
}

// Registry maps conversations to their live connections. Rooms are spread over
// shards so traffic in one conversation never waits on another shard's lock.
// An empty room is deleted as soon as its last connection leaves.
type Registry struct {
	ring   *hashing.Ring
	shards [registryShards]*shard
}

func NewRegistry() *Registry {
	r := &Registry{ring: hashing.NewRing(ringReplicas)}
	for i := range r.shards {
		r.shards[i] = &shard{rooms: make(map[int64]room)}
		r.ring.Add(i)
	}
	return r
}

func (r *Registry) shardFor(conversationID int64) *shard {
	return r.shards[r.ring.Locate(conversationID)]
}

func (r *Registry) Admit(c *Connection) {
	s := r.shardFor(c.ConversationID)
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.rooms[c.ConversationID]
	if !ok {
		members = make(room)
		s.rooms[c.ConversationID] = members
	}
	members[c.ID] = c
}

// Evict removes c from its room. It reports whether this call removed it, so
// callers can tie the leave notification to exactly one eviction.
func (r *Registry) Evict(c *Connection) bool {
	s := r.shardFor(c.ConversationID)
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.rooms[c.ConversationID]
	if !ok {
		return false
	}
	if _, ok := members[c.ID]; !ok {
		return false
	}
	delete(members, c.ID)
	if len(members) == 0 {
		delete(s.rooms, c.ConversationID)
	}
	return true
}

// MembersOf returns a snapshot; later admits and evicts do not affect it.
func (r *Registry) MembersOf(conversationID int64) []*Connection {
	s := r.shardFor(conversationID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Values(s.rooms[conversationID])
}

func (r *Registry) Count(conversationID int64) int {
	s := r.shardFor(conversationID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[conversationID])
}

// Rooms returns the number of conversations with at least one connection.
func (r *Registry) Rooms() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.rooms)
		s.mu.RUnlock()
	}
	return n
}

func (r *Registry) Connections() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		for _, members := range s.rooms {
			n += len(members)
		}
		s.mu.RUnlock()
	}
	return n
}

// Drain evicts every connection and returns them. Used on shutdown, where no
// leave notifications are sent.
func (r *Registry) Drain() []*Connection {
	var all []*Connection
	for _, s := range r.shards {
		s.mu.Lock()
		for _, members := range s.rooms {
			all = append(all, lo.Values(members)...)
		}
		s.rooms = make(map[int64]room)
		s.mu.Unlock()
	}
	return all
}
