package portal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/planea/portal/internal/platform/cache"
)

// PendingStore holds at most one deferred topic completion per session.
type PendingStore interface {
	// Set replaces any pending value for the session.
	Set(ctx context.Context, sessionID, topicID string) error
	// Take returns and clears the pending value in one step.
	Take(ctx context.Context, sessionID string) (string, bool, error)
	Peek(ctx context.Context, sessionID string) (string, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

// MemoryPendingStore is an in-memory PendingStore.
type MemoryPendingStore struct {
	pending map[string]string
	mu      sync.Mutex
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{pending: make(map[string]string)}
}

func (s *MemoryPendingStore) Set(_ context.Context, sessionID, topicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[sessionID] = topicID
	return nil
}

func (s *MemoryPendingStore) Take(_ context.Context, sessionID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	topicID, ok := s.pending[sessionID]
	delete(s.pending, sessionID)
	return topicID, ok, nil
}

func (s *MemoryPendingStore) Peek(_ context.Context, sessionID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	topicID, ok := s.pending[sessionID]
	return topicID, ok, nil
}

func (s *MemoryPendingStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, sessionID)
	return nil
}

// RedisPendingStore keeps pending completions in Redis/Dragonfly with an expiry.
type RedisPendingStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPendingStore creates a store whose entries expire after ttl.
func NewRedisPendingStore(client *redis.Client, ttl time.Duration) (*RedisPendingStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisPendingStore{client: client, ttl: ttl}, nil
}

func pendingKey(sessionID string) string {
	return cache.Key("pending", sessionID)
}

func (s *RedisPendingStore) Set(ctx context.Context, sessionID, topicID string) error {
	if err := s.client.Set(ctx, pendingKey(sessionID), topicID, s.ttl).Err(); err != nil {
		return fmt.Errorf("set pending completion: %w", err)
	}
	return nil
}

func (s *RedisPendingStore) Take(ctx context.Context, sessionID string) (string, bool, error) {
	topicID, err := s.client.GetDel(ctx, pendingKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("take pending completion: %w", err)
	}
	return topicID, true, nil
}

func (s *RedisPendingStore) Peek(ctx context.Context, sessionID string) (string, bool, error) {
	topicID, err := s.client.Get(ctx, pendingKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("peek pending completion: %w", err)
	}
	return topicID, true, nil
}

func (s *RedisPendingStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, pendingKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete pending completion: %w", err)
	}
	return nil
}
