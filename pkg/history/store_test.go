package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pario-ai/bistro/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T, ttl time.Duration, maxMessages int) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisStore(rdb, ttl, maxMessages)
}

func turns(n int) []models.ChatMessage {
	out := make([]models.ChatMessage, n)
	for i := range out {
		out[i] = models.ChatMessage{Role: models.RoleUser, Content: fmt.Sprintf("m%d", i)}
	}
	return out
}

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, s Store) {
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "c1", turns(3)...))
	require.NoError(t, s.Append(ctx, "c2", models.ChatMessage{Role: models.RoleUser, Content: "other"}))

	got, err := s.Recent(ctx, "c1", 10)
	require.NoError(t, err)
	assert.Equal(t, turns(3), got)

	got, err = s.Recent(ctx, "c1", 2)
	require.NoError(t, err)
	assert.Equal(t, turns(3)[1:], got, "limit keeps the newest messages in order")

	got, err = s.Recent(ctx, "missing", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Recent(ctx, "", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.Append(ctx, "", turns(1)...), "empty conversation id is ignored")
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore(10))
}

func TestMemoryStoreBounded(t *testing.T) {
	s := NewMemoryStore(4)
	ctx := context.Background()
	for _, m := range turns(6) {
		require.NoError(t, s.Append(ctx, "c", m))
	}
	got, err := s.Recent(ctx, "c", 10)
	require.NoError(t, err)
	assert.Equal(t, turns(6)[2:], got)
}

func TestRedisStore(t *testing.T) {
	_, s := setupRedisStore(t, time.Hour, 10)
	storeContract(t, s)
}

func TestRedisStoreBoundedAndExpiring(t *testing.T) {
	mr, s := setupRedisStore(t, time.Minute, 4)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "c", turns(6)...))
	got, err := s.Recent(ctx, "c", 10)
	require.NoError(t, err)
	assert.Equal(t, turns(6)[2:], got)

	assert.Equal(t, time.Minute, mr.TTL(redisKeyPrefix+"c"))

	mr.FastForward(2 * time.Minute)
	got, err = s.Recent(ctx, "c", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	s := NewRedisStore(rdb, time.Minute, 4)
	mr.Close()

	err = s.Append(context.Background(), "c", turns(1)...)
	assert.Error(t, err)
}
