package history

import (
	"context"
	"strings"
	"sync"
)

// Store persists conversation transcripts across restarts.
type Store interface {
	SaveTurns(ctx context.Context, agentType string, turns []Turn) error
	LoadAll(ctx context.Context) (map[string][]Turn, error)
	DeleteAgent(ctx context.Context, agentType string) error
	DeleteAll(ctx context.Context) error
	Close() error
}

// NewStore creates a postgres-backed store when configured, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}

// InMemoryStore is a simple in-process store for local/dev use.
type InMemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{turns: make(map[string][]Turn)}
}

func (s *InMemoryStore) SaveTurns(_ context.Context, agentType string, turns []Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[agentType] = append(s.turns[agentType], turns...)
	return nil
}

func (s *InMemoryStore) LoadAll(_ context.Context) (map[string][]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]Turn, len(s.turns))
	for agentType, turns := range s.turns {
		cp := make([]Turn, len(turns))
		copy(cp, turns)
		out[agentType] = cp
	}
	return out, nil
}

func (s *InMemoryStore) DeleteAgent(_ context.Context, agentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, agentType)
	return nil
}

func (s *InMemoryStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = make(map[string][]Turn)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
