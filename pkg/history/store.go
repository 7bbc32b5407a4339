// Package history keeps the recent messages of each guest conversation so
// follow-up questions reach the completion API with context.
package history

import (
	"context"
	"sync"

	"github.com/pario-ai/bistro/pkg/models"
)

// Store persists conversation messages.
type Store interface {
	// Append adds messages to the end of a conversation.
	Append(ctx context.Context, conversationID string, msgs ...models.ChatMessage) error
	// Recent returns up to limit of the newest messages, oldest first.
	Recent(ctx context.Context, conversationID string, limit int) ([]models.ChatMessage, error)
}

// MemoryStore is a process-local Store bounded per conversation.
type MemoryStore struct {
	mu    sync.Mutex
	max   int
	convs map[string][]models.ChatMessage
}

// NewMemoryStore keeps at most maxMessages per conversation.
func NewMemoryStore(maxMessages int) *MemoryStore {
	if maxMessages <= 0 {
		maxMessages = 20
	}
	return &MemoryStore{max: maxMessages, convs: make(map[string][]models.ChatMessage)}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, conversationID string, msgs ...models.ChatMessage) error {
	if conversationID == "" || len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := append(s.convs[conversationID], msgs...)
	if len(conv) > s.max {
		conv = append([]models.ChatMessage(nil), conv[len(conv)-s.max:]...)
	}
	s.convs[conversationID] = conv
	return nil
}

// Recent implements Store.
func (s *MemoryStore) Recent(_ context.Context, conversationID string, limit int) ([]models.ChatMessage, error) {
	if conversationID == "" || limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.convs[conversationID]
	if len(conv) > limit {
		conv = conv[len(conv)-limit:]
	}
	return append([]models.ChatMessage(nil), conv...), nil
}
