package chat

import (
	"encoding/json"

	"chat-gateway/internal/types"

	"go.uber.org/zap"
)

// Broadcaster fans events out to a room. A peer whose push fails is evicted and
// the rest of the room is told it left; the caller never sees the failure.
type Broadcaster struct {
	registry *Registry
	log      *zap.Logger
}

func NewBroadcaster(registry *Registry, log *zap.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, log: log.Named("broadcast")}
}

type outgoing struct {
	frame   []byte
	exclude *Connection
}

// Broadcast delivers event to every member of the conversation except exclude,
// which may be nil.
func (b *Broadcaster) Broadcast(conversationID int64, event types.OutboundEvent, exclude *Connection) {
	frame, err := json.Marshal(event)
	if err != nil {
		b.log.Error("failed to encode event", zap.String("type", string(event.EventType())), zap.Error(err))
		return
	}
	b.deliver(conversationID, outgoing{frame: frame, exclude: exclude})
}

// Evict removes c from the registry and closes it. The room is notified only if
// this call did the removal. It reports whether it did.
func (b *Broadcaster) Evict(c *Connection, code int, reason string) bool {
	left, removed := b.evict(c, code, reason)
	if removed {
		b.deliver(c.ConversationID, left)
	}
	return removed
}

func (b *Broadcaster) evict(c *Connection, code int, reason string) (outgoing, bool) {
	removed := b.registry.Evict(c)
	c.Close(code, reason)
	if !removed {
		return outgoing{}, false
	}
	frame, err := json.Marshal(types.NewUserLeftEvent(c.UserID, c.Username))
	if err != nil {
		b.log.Error("failed to encode user_left", zap.Error(err))
		return outgoing{}, false
	}
	return outgoing{frame: frame}, true
}

// deliver works through a queue so that leave notifications caused by failed
// pushes go out after the current event instead of recursing.
func (b *Broadcaster) deliver(conversationID int64, first outgoing) {
	queue := []outgoing{first}
	for len(queue) > 0 {
		ev := queue[0]
		queue = queue[1:]

		for _, peer := range b.registry.MembersOf(conversationID) {
			if peer == ev.exclude {
				continue
			}
			err := peer.Push(ev.frame)
			if err == nil {
				continue
			}
			b.log.Warn("evicting peer after failed delivery",
				zap.Int64("conversation_id", conversationID),
				zap.String("connection_id", peer.ID.String()),
				zap.Int64("user_id", peer.UserID),
				zap.Error(err))
			peer.session.BeginClosing()
			left, ok := b.evict(peer, CloseInternalError, "delivery failed")
			peer.Kill(CloseInternalError, "delivery failed")
			if ok {
				queue = append(queue, left)
			}
		}
	}
}
