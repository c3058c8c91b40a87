package api

import (
	"net/http"
	"strconv"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WSHandler struct {
	gateway   *chat.Gateway
	transport chat.TransportOptions
	upgrader  websocket.Upgrader
	log       *zap.Logger
}

func NewWSHandler(gateway *chat.Gateway, transport chat.TransportOptions, log *zap.Logger) *WSHandler {
	return &WSHandler{
		gateway:   gateway,
		transport: transport,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades the request and hands the stream to the gateway. Credential
// and membership are checked after the upgrade so that refusals carry a close code.
func (h *WSHandler) Handle(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	credential := middleware.BearerToken(c.Request)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Int64("conversation_id", conversationID), zap.Error(err))
		return
	}

	h.gateway.Serve(c.Request.Context(), chat.NewWebSocketTransport(conn, h.transport), credential, conversationID)
}
