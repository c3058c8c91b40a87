package repository

import (
	"context"

	"chat-gateway/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *PostgresConversationRepo {
	return &PostgresConversationRepo{pool: pool}
}

func (r *PostgresConversationRepo) ConversationExists(ctx context.Context, conversationID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`, conversationID).Scan(&exists)
	return exists, wrap(err, "conversation exists")
}

func (r *PostgresConversationRepo) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		)`
	var ok bool
	err := r.pool.QueryRow(ctx, query, conversationID, userID).Scan(&ok)
	return ok, wrap(err, "is participant")
}

func (r *PostgresConversationRepo) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	c := &models.Conversation{Title: title}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO conversations (title) VALUES ($1) RETURNING id, created_at`, title,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, wrap(err, "create conversation")
	}
	return c, nil
}

func (r *PostgresConversationRepo) AddParticipant(ctx context.Context, conversationID, userID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, conversationID, userID)
	return wrap(err, "add participant")
}

// FindDirectConversation returns a conversation both users take part in.
func (r *PostgresConversationRepo) FindDirectConversation(ctx context.Context, userA, userB int64) (*models.Conversation, error) {
	const query = `
		SELECT c.id, c.title, c.created_at
		FROM conversations c
		JOIN conversation_participants a ON a.conversation_id = c.id AND a.user_id = $1
		JOIN conversation_participants b ON b.conversation_id = c.id AND b.user_id = $2
		ORDER BY c.id
		LIMIT 1`
	c := &models.Conversation{}
	if err := r.pool.QueryRow(ctx, query, userA, userB).Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
		return nil, wrap(err, "find direct conversation")
	}
	return c, nil
}

// Participants lists the user ids of a conversation.
func (r *PostgresConversationRepo) Participants(ctx context.Context, conversationID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id FROM conversation_participants
		WHERE conversation_id = $1
		ORDER BY user_id`, conversationID)
	if err != nil {
		return nil, wrap(err, "participants")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	return ids, wrap(err, "participants")
}
