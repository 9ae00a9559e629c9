package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in a process-local map. Expiry is evaluated
// lazily on read, there is no background sweeper.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]entry
}

type entry struct {
	username string
	exp      time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m: make(map[string]entry),
	}
}

func (s *MemoryStore) Set(_ context.Context, token, username string, ttl time.Duration) error {
	s.mu.Lock()
	s.m[token] = entry{username: username, exp: time.Now().Add(ttl)}
	s.mu.Unlock()

	return nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (string, bool, error) {
	now := time.Now()

	s.mu.RLock()
	e, ok := s.m[token]
	s.mu.RUnlock()

	if !ok {
		return "", false, nil
	}

	if now.After(e.exp) {
		s.mu.Lock()
		delete(s.m, token)
		s.mu.Unlock()

		return "", false, nil
	}

	return e.username, true, nil
}

func (s *MemoryStore) Touch(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[token]

	if !ok {
		return nil
	}

	e.exp = time.Now().Add(ttl)
	s.m[token] = e

	return nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.m, token)
	s.mu.Unlock()

	return nil
}
