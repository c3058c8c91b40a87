package repository

import (
	"context"
	"slices"
	"time"

	"chat-gateway/internal/contract"
	"chat-gateway/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type PostgresMessagesRepo struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewMessagesRepo(pool *pgxpool.Pool, log *zap.Logger) *PostgresMessagesRepo {
	return &PostgresMessagesRepo{pool: pool, log: log.Named("repo")}
}

// Append inserts a message; the database assigns id and created_at.
func (r *PostgresMessagesRepo) Append(ctx context.Context, conversationID, senderID int64, content string) (models.Message, error) {
	const query = `
		INSERT INTO messages (conversation_id, sender_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	m := models.Message{ConversationID: conversationID, SenderID: senderID, Content: content}
	if err := r.pool.QueryRow(ctx, query, conversationID, senderID, content).Scan(&m.ID, &m.CreatedAt); err != nil {
		r.log.Error("failed to save message",
			zap.Int64("conversation_id", conversationID),
			zap.Int64("sender_id", senderID),
			zap.Error(err))
		return models.Message{}, wrap(err, "append message")
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

// History returns up to limit messages older than cursor, oldest first. The
// row comparison keeps messages sharing a timestamp on the right page.
func (r *PostgresMessagesRepo) History(ctx context.Context, conversationID int64, limit int, cursor contract.Cursor) ([]models.Message, error) {
	limit = clampLimit(limit)
	before := cursor.Before
	if before.IsZero() {
		before = time.Now()
	}

	const query = `
		SELECT m.id, m.conversation_id, m.sender_id, u.username, m.content, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
		  AND (m.created_at, m.id) < ($2, $3)
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $4`

	rows, err := r.pool.Query(ctx, query, conversationID, before, cursor.BeforeID, limit)
	if err != nil {
		r.log.Error("history query failed", zap.Int64("conversation_id", conversationID), zap.Error(err))
		return nil, wrap(err, "fetch history")
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName, &m.Content, &m.CreatedAt); err != nil {
			return nil, wrap(err, "scan message")
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "iterate history")
	}
	slices.Reverse(messages)
	return messages, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
