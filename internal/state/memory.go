package state

import (
	"context"
	"sync"

	"github.com/arbz/zeroday-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. It is the default
// backing for the low-latency mirror and for tests. Not durable.
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[string]model.Account
	positions map[string]model.Position
	nonces    map[string]uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]model.Account),
		positions: make(map[string]model.Position),
		nonces:    make(map[string]uint64),
	}
}

func (s *MemoryStore) GetAccount(_ context.Context, trader string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[trader]
	if !ok {
		return model.Account{}, ErrNotFound
	}
	return acc, nil
}

func (s *MemoryStore) PutAccount(_ context.Context, trader string, acc model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[trader] = acc
	return nil
}

func (s *MemoryStore) ListAccounts(_ context.Context) (map[string]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Account, len(s.accounts))
	for k, v := range s.accounts {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) GetPosition(_ context.Context, trader string) (model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[trader]
	if !ok {
		return model.Position{}, ErrNotFound
	}
	return pos, nil
}

func (s *MemoryStore) PutPosition(_ context.Context, trader string, pos model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[trader] = pos
	return nil
}

func (s *MemoryStore) ListPositions(_ context.Context) (map[string]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Position, len(s.positions))
	for k, v := range s.positions {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) GetNonce(_ context.Context, trader string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nonces[trader], nil
}

func (s *MemoryStore) PutNonce(_ context.Context, trader string, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[trader] = nonce
	return nil
}
