// Command devseed creates demo users and a shared conversation, then prints a
// bearer token for each user so the websocket endpoint can be tried by hand.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/config"
	"chat-gateway/internal/contract"
	"chat-gateway/internal/db"
	"chat-gateway/internal/logger"
	"chat-gateway/internal/models"
	"chat-gateway/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type seedStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateConversation(ctx context.Context, title string) (*models.Conversation, error)
	AddParticipant(ctx context.Context, conversationID, userID int64) error
	FindDirectConversation(ctx context.Context, userA, userB int64) (*models.Conversation, error)
}

type postgresSeedStore struct {
	*repository.PostgresUserRepo
	*repository.PostgresConversationRepo
}

type seedUser struct {
	Username string `validate:"required,alphanum,min=3,max=32"`
	Email    string `validate:"required,email"`
}

type seedResult struct {
	Users        []*models.User
	Conversation *models.Conversation
}

var validate = validator.New()

func parseUsers(raw string) ([]seedUser, error) {
	names := lo.Uniq(lo.Compact(lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})))
	if len(names) < 2 {
		return nil, errors.New("at least two users are needed for a conversation")
	}
	users := make([]seedUser, 0, len(names))
	for _, name := range names {
		u := seedUser{Username: name, Email: name + "@example.com"}
		if err := validate.Struct(u); err != nil {
			return nil, fmt.Errorf("user %q: %w", name, err)
		}
		users = append(users, u)
	}
	return users, nil
}

// seed is idempotent: existing users are reused and the first two users get
// one shared conversation.
func seed(ctx context.Context, store seedStore, users []seedUser, title string) (*seedResult, error) {
	res := &seedResult{}
	for _, su := range users {
		u, err := store.GetUserByUsername(ctx, su.Username)
		if errors.Is(err, contract.ErrNotFound) {
			u = &models.User{Username: su.Username, Email: su.Email, IsActive: true}
			err = store.CreateUser(ctx, u)
		}
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", su.Username, err)
		}
		res.Users = append(res.Users, u)
	}

	a, b := res.Users[0], res.Users[1]
	conv, err := store.FindDirectConversation(ctx, a.ID, b.ID)
	if errors.Is(err, contract.ErrNotFound) {
		conv, err = store.CreateConversation(ctx, title)
		if err != nil {
			return nil, err
		}
		for _, id := range []int64{a.ID, b.ID} {
			if err := store.AddParticipant(ctx, conv.ID, id); err != nil {
				return nil, err
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("seed conversation: %w", err)
	}
	res.Conversation = conv
	return res, nil
}

func printTokens(w io.Writer, res *seedResult, key string, ttl time.Duration, baseURL string) error {
	fmt.Fprintf(w, "conversation %d (%s)\n", res.Conversation.ID, res.Conversation.Title)
	for _, u := range res.Users {
		token, err := auth.GenerateToken(key, u.Username, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-12s id=%-4d %s/conversations/%d/ws?token=%s\n", u.Username, u.ID, baseURL, res.Conversation.ID, token)
	}
	return nil
}

func run() error {
	usersFlag := flag.String("users", "testuser,testuser2,admin", "comma separated usernames; the first two share a conversation")
	title := flag.String("title", "Direct chat", "title of the seeded conversation")
	flag.Parse()

	users, err := parseUsers(*usersFlag)
	if err != nil {
		return err
	}

	cfg, _, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var store seedStore
	switch cfg.StoreDriver {
	case config.DriverBadger:
		s, err := repository.OpenBadger(cfg.BadgerPath, log)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgresSeedStore{
			PostgresUserRepo:         repository.NewUserRepo(pool),
			PostgresConversationRepo: repository.NewConversationRepo(pool),
		}
	}

	res, err := seed(ctx, store, users, *title)
	if err != nil {
		return err
	}
	log.Info("seed complete", zap.Int("users", len(res.Users)), zap.Int64("conversation_id", res.Conversation.ID))
	return printTokens(os.Stdout, res, cfg.AuthKey, cfg.TokenTTL, "ws://"+cfg.Address())
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
