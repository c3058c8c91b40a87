//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"errors"
	"time"

	"chat-gateway/internal/models"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrMissingCredential   = errors.New("missing credential")
	ErrMalformedCredential = errors.New("malformed credential")
	ErrUnknownPrincipal    = errors.New("unknown principal")
	ErrAuthentication      = errors.New("authentication failed")
	// ErrStoreUnavailable marks a store failure after which the session cannot keep persisting.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Identity is the principal established at handshake.
type Identity struct {
	UserID   int64
	Username string
}

type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}

type ParticipationOracle interface {
	ConversationExists(ctx context.Context, conversationID int64) (bool, error)
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
}

// Cursor marks a history position. A page holds messages strictly older than
// (Before, BeforeID) in (created_at, id) order; a zero BeforeID excludes every
// message at Before, a zero Before means now.
type Cursor struct {
	Before   time.Time
	BeforeID int64
}

// MessageStore appends messages durably. Append assigns the id and created_at.
type MessageStore interface {
	Append(ctx context.Context, conversationID, senderID int64, content string) (models.Message, error)
	History(ctx context.Context, conversationID int64, limit int, cursor Cursor) ([]models.Message, error)
}

type UserDirectory interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}
