package types

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"chat-gateway/internal/models"

	"github.com/go-playground/validator/v10"
)

type EventType string

const (
	TypeConnection EventType = "connection"
	TypeMessage    EventType = "message"
	TypeUserLeft   EventType = "user_left"
	TypeError      EventType = "error"
)

const StatusConnected = "connected"

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrEmptyContent   = errors.New("content is required")
)

var validate = validator.New()

// OutboundEvent is the only vocabulary sent to clients.
type OutboundEvent interface {
	EventType() EventType
}

type ConnectionEvent struct {
	Type           EventType `json:"type"`
	Status         string    `json:"status"`
	ConversationID int64     `json:"conversation_id"`
	UserID         int64     `json:"user_id"`
}

type MessageEvent struct {
	Type           EventType `json:"type"`
	ID             int64     `json:"id"`
	Content        string    `json:"content"`
	SenderID       int64     `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	ConversationID int64     `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type UserLeftEvent struct {
	Type     EventType `json:"type"`
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
}

type ErrorEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

func (ConnectionEvent) EventType() EventType { return TypeConnection }
func (MessageEvent) EventType() EventType    { return TypeMessage }
func (UserLeftEvent) EventType() EventType   { return TypeUserLeft }
func (ErrorEvent) EventType() EventType      { return TypeError }

func NewConnectionEvent(conversationID, userID int64) ConnectionEvent {
	return ConnectionEvent{
		Type:           TypeConnection,
		Status:         StatusConnected,
		ConversationID: conversationID,
		UserID:         userID,
	}
}

// NewMessageEvent builds the broadcast event from the stored record, never from client input.
func NewMessageEvent(m models.Message, senderName string) MessageEvent {
	return MessageEvent{
		Type:           TypeMessage,
		ID:             m.ID,
		Content:        m.Content,
		SenderID:       m.SenderID,
		SenderName:     senderName,
		ConversationID: m.ConversationID,
		CreatedAt:      m.CreatedAt,
	}
}

func NewUserLeftEvent(userID int64, username string) UserLeftEvent {
	return UserLeftEvent{Type: TypeUserLeft, UserID: userID, Username: username}
}

func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: message}
}

// InboundFrame is the single client -> gateway frame.
type InboundFrame struct {
	Content *string `json:"content"`
}

type inboundPayload struct {
	Content string `validate:"required"`
}

// ParseInbound decodes a frame and returns its content. Content that is empty
// after trimming is rejected; the untrimmed text is what gets stored.
func ParseInbound(data []byte) (string, error) {
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return "", ErrMalformedFrame
	}
	if frame.Content == nil {
		return "", ErrEmptyContent
	}
	if err := validate.Struct(inboundPayload{Content: strings.TrimSpace(*frame.Content)}); err != nil {
		return "", ErrEmptyContent
	}
	return *frame.Content, nil
}
