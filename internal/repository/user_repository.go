package repository

import (
	"context"

	"chat-gateway/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

func (r *PostgresUserRepo) CreateUser(ctx context.Context, user *models.User) error {
	const query = `
		INSERT INTO users (username, email, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query, user.Username, user.Email, user.IsActive).Scan(&user.ID, &user.CreatedAt)
	return wrap(err, "insert user")
}

func (r *PostgresUserRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const query = `
		SELECT id, username, email, is_active, created_at
		FROM users
		WHERE username = $1`

	user := &models.User{}
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.IsActive,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, wrap(err, "find user by username")
	}
	return user, nil
}

func (r *PostgresUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	const query = `
		SELECT id, username, email, is_active, created_at
		FROM users
		WHERE id = $1`

	user := &models.User{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.IsActive,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, wrap(err, "find user by id")
	}
	return user, nil
}
