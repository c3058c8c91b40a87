package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"chat-gateway/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseUsers(t *testing.T) {
	users, err := parseUsers(" alice, bob ,alice,, carol")
	require.NoError(t, err)
	require.Len(t, users, 3)
	require.Equal(t, "bob", users[1].Username)
	require.Equal(t, "bob@example.com", users[1].Email)

	_, err = parseUsers("alice")
	require.Error(t, err)

	_, err = parseUsers("alice,bad name!")
	require.Error(t, err)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := repository.OpenBadger("", zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	users, err := parseUsers("testuser,testuser2,admin")
	require.NoError(t, err)

	first, err := seed(ctx, store, users, "Direct chat")
	require.NoError(t, err)
	require.Len(t, first.Users, 3)

	ok, err := store.IsParticipant(ctx, first.Conversation.ID, first.Users[1].ID)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.IsParticipant(ctx, first.Conversation.ID, first.Users[2].ID)
	require.NoError(t, err)
	require.False(t, ok)

	second, err := seed(ctx, store, users, "Direct chat")
	require.NoError(t, err)
	require.Equal(t, first.Conversation.ID, second.Conversation.ID)
	require.Equal(t, first.Users[0].ID, second.Users[0].ID)

	var out bytes.Buffer
	require.NoError(t, printTokens(&out, second, "k", time.Hour, "ws://localhost:8080"))
	require.Contains(t, out.String(), "testuser2")
	require.Contains(t, out.String(), "?token=")
}
