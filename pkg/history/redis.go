package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pario-ai/bistro/pkg/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "bistro:history:"

// RedisStore keeps conversations in Redis lists so several server
// instances share them.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	max int
}

// NewRedisStore creates a RedisStore. Conversations expire ttl after their
// last message and keep at most maxMessages entries.
func NewRedisStore(rdb *redis.Client, ttl time.Duration, maxMessages int) *RedisStore {
	if maxMessages <= 0 {
		maxMessages = 20
	}
	return &RedisStore{rdb: rdb, ttl: ttl, max: maxMessages}
}

func (s *RedisStore) key(conversationID string) string {
	return redisKeyPrefix + conversationID
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, conversationID string, msgs ...models.ChatMessage) error {
	if conversationID == "" || len(msgs) == 0 {
		return nil
	}
	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode history message: %w", err)
		}
		values = append(values, data)
	}

	key := s.key(conversationID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, int64(-s.max), -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Recent implements Store.
func (s *RedisStore) Recent(ctx context.Context, conversationID string, limit int) ([]models.ChatMessage, error) {
	if conversationID == "" || limit <= 0 {
		return nil, nil
	}
	raw, err := s.rdb.LRange(ctx, s.key(conversationID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	out := make([]models.ChatMessage, 0, len(raw))
	for _, r := range raw {
		var m models.ChatMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode history message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}
