package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tylerfeldstein/portfolio-chat/internal/domain"
)

func setupTestRedis(t *testing.T) (*TypingRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	repo := NewTypingRepository(client)
	return repo, mr
}

func TestTypingRepository_SetAndList(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "chat-1", "u1"))
	require.NoError(t, repo.Set(ctx, "chat-1", "u2"))
	require.NoError(t, repo.Set(ctx, "chat-2", "u3"))

	statuses, err := repo.List(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	subjects := []string{statuses[0].SubjectID, statuses[1].SubjectID}
	assert.ElementsMatch(t, []string{"u1", "u2"}, subjects)
	for _, s := range statuses {
		assert.Equal(t, "chat-1", s.ChatID)
		assert.WithinDuration(t, time.Now().UTC(), s.LastUpdated, 2*time.Second)
	}
}

func TestTypingRepository_SetRefreshesTTL(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "chat-1", "u1"))
	mr.FastForward(8 * time.Second)
	require.NoError(t, repo.Set(ctx, "chat-1", "u1"))
	mr.FastForward(8 * time.Second)

	// Without the refresh the key would have expired by now.
	assert.True(t, mr.Exists("typing:chat-1:u1"))
}

func TestTypingRepository_Clear(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "chat-1", "u1"))
	require.NoError(t, repo.Clear(ctx, "chat-1", "u1"))

	statuses, err := repo.List(ctx, "chat-1")
	require.NoError(t, err)
	assert.Empty(t, statuses)
}

func TestTypingRepository_Clear_AbsentIsNoop(t *testing.T) {
	repo, _ := setupTestRedis(t)
	assert.NoError(t, repo.Clear(context.Background(), "chat-1", "nobody"))
}

func TestTypingRepository_List_ExpiredKeysGone(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "chat-1", "u1"))
	mr.FastForward(domain.TypingTTL + time.Second)

	statuses, err := repo.List(ctx, "chat-1")
	require.NoError(t, err)
	assert.Empty(t, statuses)
}

func TestTypingRepository_List_FiltersStaleTimestamps(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	// A signal whose key still exists but whose timestamp is past the TTL
	// must not surface. Write it directly to bypass the repo's expiry.
	stale := time.Now().UTC().Add(-domain.TypingTTL - time.Second).Format(time.RFC3339Nano)
	require.NoError(t, mr.Set("typing:chat-1:u1", stale))

	statuses, err := repo.List(ctx, "chat-1")
	require.NoError(t, err)
	assert.Empty(t, statuses)
}

func TestTypingRepository_ClearChat(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "chat-1", "u1"))
	require.NoError(t, repo.Set(ctx, "chat-1", "u2"))
	require.NoError(t, repo.Set(ctx, "chat-2", "u3"))

	require.NoError(t, repo.ClearChat(ctx, "chat-1"))

	assert.False(t, mr.Exists("typing:chat-1:u1"))
	assert.False(t, mr.Exists("typing:chat-1:u2"))
	assert.True(t, mr.Exists("typing:chat-2:u3"))
}

func TestTypingRepository_ClearChat_EmptyIsNoop(t *testing.T) {
	repo, _ := setupTestRedis(t)
	assert.NoError(t, repo.ClearChat(context.Background(), "chat-empty"))
}
