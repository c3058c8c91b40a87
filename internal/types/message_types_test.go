package types

import (
	"encoding/json"
	"testing"
	"time"

	"chat-gateway/internal/models"

	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    string
		wantErr error
	}{
		{name: "plain content", frame: `{"content":"hi"}`, want: "hi"},
		{name: "keeps surrounding spaces", frame: `{"content":"  hi "}`, want: "  hi "},
		{name: "missing content", frame: `{}`, wantErr: ErrEmptyContent},
		{name: "blank content", frame: `{"content":"   \n\t"}`, wantErr: ErrEmptyContent},
		{name: "not json", frame: `hello`, wantErr: ErrMalformedFrame},
		{name: "wrong content type", frame: `{"content":42}`, wantErr: ErrMalformedFrame},
		{name: "extra fields ignored", frame: `{"content":"x","sender_id":99}`, want: "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			got, err := ParseInbound([]byte(tt.frame))
			if tt.wantErr != nil {
				req.ErrorIs(err, tt.wantErr)
				return
			}
			req.NoError(err)
			req.Equal(tt.want, got)
		})
	}
}

func TestOutboundEvents_WireShape(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	raw, err := json.Marshal(NewMessageEvent(models.Message{
		ID: 12, ConversationID: 7, SenderID: 1, Content: "hi", CreatedAt: at,
	}, "alice"))
	req.NoError(err)
	req.JSONEq(`{"type":"message","id":12,"content":"hi","sender_id":1,"sender_name":"alice",
		"conversation_id":7,"created_at":"2024-05-01T10:00:00Z"}`, string(raw))

	raw, err = json.Marshal(NewConnectionEvent(7, 1))
	req.NoError(err)
	req.JSONEq(`{"type":"connection","status":"connected","conversation_id":7,"user_id":1}`, string(raw))

	raw, err = json.Marshal(NewUserLeftEvent(2, "bob"))
	req.NoError(err)
	req.JSONEq(`{"type":"user_left","user_id":2,"username":"bob"}`, string(raw))

	raw, err = json.Marshal(NewErrorEvent("boom"))
	req.NoError(err)
	req.JSONEq(`{"type":"error","message":"boom"}`, string(raw))
}
