package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"chat-gateway/internal/contract"
	"chat-gateway/internal/middleware"
	"chat-gateway/internal/types"

	"go.uber.org/zap"
)

type Options struct {
	SendBufferSize   int
	HandshakeTimeout time.Duration
	PersistTimeout   time.Duration
	PingPeriod       time.Duration
	RateLimit        float64
	RateBurst        int
}

// Gateway drives each connection from handshake to close: authenticate,
// authorize, admit, then persist and broadcast every inbound message in order.
type Gateway struct {
	log         *zap.Logger
	verifier    contract.IdentityVerifier
	oracle      contract.ParticipationOracle
	store       contract.MessageStore
	registry    *Registry
	broadcaster *Broadcaster
	opts        Options

	mu       sync.Mutex
	draining bool
	workers  sync.WaitGroup
}

func NewGateway(
	log *zap.Logger,
	verifier contract.IdentityVerifier,
	oracle contract.ParticipationOracle,
	store contract.MessageStore,
	registry *Registry,
	opts Options,
) *Gateway {
	if opts.SendBufferSize < 1 {
		opts.SendBufferSize = 256
	}
	return &Gateway{
		log:         log.Named("gateway"),
		verifier:    verifier,
		oracle:      oracle,
		store:       store,
		registry:    registry,
		broadcaster: NewBroadcaster(registry, log),
		opts:        opts,
	}
}

func (g *Gateway) Registry() *Registry { return g.registry }

func (g *Gateway) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.draining {
		return false
	}
	g.workers.Add(1)
	return true
}

func (g *Gateway) isDraining() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.draining
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Serve runs one connection to completion and returns once it is closed.
func (g *Gateway) Serve(ctx context.Context, t Transport, credential string, conversationID int64) {
	session := NewSession()
	log := g.log.With(zap.Int64("conversation_id", conversationID))

	if !g.enter() {
		_ = session.Transition(StateRejected)
		_ = t.CloseWithCode(CloseGoingAway, "Server shutting down")
		return
	}
	defer g.workers.Done()

	hctx, cancel := withTimeout(ctx, g.opts.HandshakeTimeout)
	identity, err := g.handshake(hctx, credential, conversationID)
	cancel()
	if err != nil {
		_ = session.Transition(StateRejected)
		var rej *Rejection
		if !errors.As(err, &rej) {
			rej = reject(CloseInternalError, "Internal server error", err)
		}
		if rej.Code == CloseInternalError {
			log.Error("handshake failed", zap.Error(err))
		} else {
			log.Info("handshake rejected", zap.Int("code", rej.Code), zap.Error(err))
		}
		_ = t.CloseWithCode(rej.Code, rej.Reason)
		return
	}

	conn := NewConnection(t, session, identity, conversationID, g.opts.SendBufferSize)
	log = log.With(zap.Int64("user_id", identity.UserID), zap.String("connection_id", conn.ID.String()))

	// The queue is empty here, so the confirmation is always the first frame out.
	confirmed, _ := json.Marshal(types.NewConnectionEvent(conversationID, identity.UserID))
	_ = conn.Push(confirmed)
	_ = session.Transition(StateActive)
	g.registry.Admit(conn)
	go conn.writePump(g.opts.PingPeriod, g.log.Named("hub"))

	if g.isDraining() {
		g.registry.Evict(conn)
		conn.Close(CloseGoingAway, "Server shutting down")
	}

	log.Info("connection admitted", zap.Int("room_size", g.registry.Count(conversationID)))

	code, reason := g.readLoop(ctx, conn, log)
	g.finish(conn, code, reason, log)
}

// handshake checks, in order, the credential, the conversation and membership.
func (g *Gateway) handshake(ctx context.Context, credential string, conversationID int64) (contract.Identity, error) {
	if credential == "" {
		return contract.Identity{}, reject(CloseBadCredential, "Missing token", nil)
	}

	identity, err := g.verifier.Verify(ctx, credential)
	if err != nil {
		switch {
		case errors.Is(err, contract.ErrUnknownPrincipal):
			return contract.Identity{}, reject(CloseBadCredential, "User not found", err)
		case errors.Is(err, contract.ErrMissingCredential), errors.Is(err, contract.ErrMalformedCredential):
			return contract.Identity{}, reject(CloseBadCredential, "Invalid token", err)
		case errors.Is(err, contract.ErrAuthentication):
			return contract.Identity{}, reject(CloseAuthFailed, "Authentication error", err)
		}
		return contract.Identity{}, reject(CloseInternalError, "Internal server error", err)
	}

	exists, err := g.oracle.ConversationExists(ctx, conversationID)
	if err != nil {
		return contract.Identity{}, reject(CloseInternalError, "Internal server error", err)
	}
	if !exists {
		return contract.Identity{}, reject(CloseNotFound, "Conversation not found", nil)
	}

	ok, err := g.oracle.IsParticipant(ctx, conversationID, identity.UserID)
	if err != nil {
		return contract.Identity{}, reject(CloseInternalError, "Internal server error", err)
	}
	if !ok {
		return contract.Identity{}, reject(CloseNotParticipant, "Not authorized for this conversation", nil)
	}
	return identity, nil
}

// readLoop handles inbound frames one at a time; a message is fully persisted
// and broadcast before the next frame is read. It returns the close status.
func (g *Gateway) readLoop(ctx context.Context, conn *Connection, log *zap.Logger) (int, string) {
	limiter := middleware.NewRatelimiter(g.opts.RateLimit, g.opts.RateBurst)

	for {
		data, err := conn.transport.ReadFrame()
		if errors.Is(err, ErrUnsupportedFrame) {
			g.sendError(conn, "Invalid message format", log)
			continue
		}
		if err != nil {
			if IsUnexpectedClose(err) {
				log.Warn("unexpected close", zap.Error(err))
			} else {
				log.Debug("inbound stream ended", zap.Error(err))
			}
			return CloseNormal, ""
		}
		// An evicted connection is already gone as far as the room knows.
		if conn.session.State() != StateActive {
			log.Debug("dropping frame from inactive connection", zap.Stringer("state", conn.session.State()))
			return CloseInternalError, "delivery failed"
		}

		if !limiter.Allow() {
			g.sendError(conn, "Rate limit exceeded", log)
			continue
		}

		content, err := types.ParseInbound(data)
		if err != nil {
			if errors.Is(err, types.ErrEmptyContent) {
				g.sendError(conn, "Message content cannot be empty", log)
			} else {
				g.sendError(conn, "Invalid message format", log)
			}
			continue
		}

		pctx, cancel := withTimeout(ctx, g.opts.PersistTimeout)
		msg, err := g.store.Append(pctx, conn.ConversationID, conn.UserID, content)
		cancel()
		if err != nil {
			if errors.Is(err, contract.ErrStoreUnavailable) {
				log.Error("message store unavailable, closing connection", zap.Error(err))
				return CloseInternalError, "Internal server error"
			}
			log.Warn("failed to persist message", zap.Error(err))
			g.sendError(conn, "Failed to save message", log)
			continue
		}
		if conn.session.State() != StateActive {
			log.Warn("connection evicted while persisting, message not broadcast", zap.Int64("message_id", msg.ID))
			return CloseInternalError, "delivery failed"
		}

		g.broadcaster.Broadcast(conn.ConversationID, types.NewMessageEvent(msg, conn.Username), nil)
	}
}

func (g *Gateway) sendError(conn *Connection, message string, log *zap.Logger) {
	frame, _ := json.Marshal(types.NewErrorEvent(message))
	if err := conn.Push(frame); err != nil {
		log.Debug("error event not delivered", zap.String("message", message), zap.Error(err))
	}
}

func (g *Gateway) finish(conn *Connection, code int, reason string, log *zap.Logger) {
	conn.session.BeginClosing()
	g.broadcaster.Evict(conn, code, reason)
	<-conn.Done()
	if err := conn.session.Transition(StateClosed); err != nil {
		log.Error("session did not close cleanly", zap.Error(err))
	}
	log.Info("connection closed", zap.Int("code", code))
}

// Shutdown refuses new handshakes, closes every registered connection with
// 1001 without leave notifications, and waits for connection workers to exit.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.draining = true
	g.mu.Unlock()

	conns := g.registry.Drain()
	for _, c := range conns {
		c.Close(CloseGoingAway, "Server shutting down")
	}
	g.log.Info("draining connections", zap.Int("connections", len(conns)))

	done := make(chan struct{})
	go func() {
		g.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
