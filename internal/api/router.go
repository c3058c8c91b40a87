package api

import (
	"net/http"
	"time"

	"chat-gateway/internal/chat"
	"chat-gateway/internal/contract"
	"chat-gateway/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Deps struct {
	Log        *zap.Logger
	Gateway    *chat.Gateway
	Verifier   contract.IdentityVerifier
	Oracle     contract.ParticipationOracle
	Store      contract.MessageStore
	Transport  chat.TransportOptions
	Production bool
}

func NewRouter(d Deps) *gin.Engine {
	if d.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	log := d.Log.Named("api")

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))

	r.GET("/healthz", Health(d.Gateway.Registry()))

	ws := NewWSHandler(d.Gateway, d.Transport, log)
	conversations := NewConversationHandler(d.Oracle, d.Store, d.Gateway.Registry(), log)

	group := r.Group("/conversations/:id")
	group.GET("/ws", ws.Handle)

	authed := group.Group("", middleware.Authenticate(d.Verifier, d.Log))
	authed.GET("/messages", conversations.History)
	authed.GET("/presence", conversations.Presence)

	return r
}

// RequestLogger logs one line per request once the handler chain has run.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func Health(registry *chat.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"rooms":       registry.Rooms(),
			"connections": registry.Connections(),
		})
	}
}
