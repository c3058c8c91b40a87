package api

import (
	"net/http"
	"strconv"
	"time"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/contract"
	"chat-gateway/internal/middleware"
	"chat-gateway/internal/models"
	"chat-gateway/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 50

type ConversationHandler struct {
	oracle   contract.ParticipationOracle
	store    contract.MessageStore
	registry *chat.Registry
	log      *zap.Logger
}

func NewConversationHandler(oracle contract.ParticipationOracle, store contract.MessageStore, registry *chat.Registry, log *zap.Logger) *ConversationHandler {
	return &ConversationHandler{oracle: oracle, store: store, registry: registry, log: log}
}

// participant resolves the path conversation and checks the caller belongs to it.
// On failure the response has been written.
func (h *ConversationHandler) participant(c *gin.Context) (int64, bool) {
	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	identity, _ := middleware.IdentityFrom(c)
	ctx := c.Request.Context()

	exists, err := h.oracle.ConversationExists(ctx, conversationID)
	if err != nil {
		h.log.Error("conversation lookup failed", zap.Int64("conversation_id", conversationID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return 0, false
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return 0, false
	}

	ok, err := h.oracle.IsParticipant(ctx, conversationID, identity.UserID)
	if err != nil {
		h.log.Error("participation lookup failed", zap.Int64("conversation_id", conversationID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return 0, false
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to view this conversation"})
		return 0, false
	}
	return conversationID, true
}

func (h *ConversationHandler) History(c *gin.Context) {
	conversationID, ok := h.participant(c)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	var cursor contract.Cursor
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before must be an RFC3339 timestamp"})
			return
		}
		cursor.Before = t
	}
	if raw := c.Query("before_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before_id must be a positive integer"})
			return
		}
		cursor.BeforeID = id
	}

	messages, err := h.store.History(c.Request.Context(), conversationID, limit, cursor)
	if err != nil {
		h.log.Error("history fetch failed", zap.Int64("conversation_id", conversationID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"messages": lo.Map(messages, func(m models.Message, _ int) types.MessageEvent {
			return types.NewMessageEvent(m, m.SenderName)
		}),
	})
}

func (h *ConversationHandler) Presence(c *gin.Context) {
	conversationID, ok := h.participant(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"online":          h.registry.Count(conversationID),
	})
}
