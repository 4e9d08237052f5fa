package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// FlagStore holds the only durable client-side marker: the id of the
// participation this client started. Lifecycle: set when a session starts,
// cleared when the backend reports no active session. A missing marker
// means "no active session" after a restart.
type FlagStore interface {
	ActiveParticipation(ctx context.Context) (string, error)
	SetActiveParticipation(ctx context.Context, participationID string) error
	ClearActiveParticipation(ctx context.Context) error
}

type memoryFlagStore struct {
	mu sync.RWMutex
	id string
}

// NewMemoryFlagStore creates a process-local flag store
func NewMemoryFlagStore() FlagStore {
	return &memoryFlagStore{}
}

func (s *memoryFlagStore) ActiveParticipation(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, nil
}

func (s *memoryFlagStore) SetActiveParticipation(ctx context.Context, participationID string) error {
	s.mu.Lock()
	s.id = participationID
	s.mu.Unlock()
	return nil
}

func (s *memoryFlagStore) ClearActiveParticipation(ctx context.Context) error {
	s.mu.Lock()
	s.id = ""
	s.mu.Unlock()
	return nil
}

type redisFlagStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisFlagStore creates a flag store that survives client restarts.
// namespace separates identities sharing one Redis, usually the username.
func NewRedisFlagStore(client *redis.Client, namespace string) FlagStore {
	return &redisFlagStore{
		client:    client,
		namespace: namespace,
	}
}

func (s *redisFlagStore) key() string {
	return fmt.Sprintf("client:%s:activeParticipation", s.namespace)
}

func (s *redisFlagStore) ActiveParticipation(ctx context.Context) (string, error) {
	id, err := s.client.Get(ctx, s.key()).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *redisFlagStore) SetActiveParticipation(ctx context.Context, participationID string) error {
	return s.client.Set(ctx, s.key(), participationID, 0).Err()
}

func (s *redisFlagStore) ClearActiveParticipation(ctx context.Context) error {
	return s.client.Del(ctx, s.key()).Err()
}
