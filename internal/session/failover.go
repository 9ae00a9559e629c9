package session

import (
	"context"
	"sync"
	"time"
)

const healthCheckInterval = 5 * time.Second

// pinger is the slice of RedisStore the failover logic needs; kept small so
// tests can fake it.
type pinger interface {
	Ping(ctx context.Context) error
}

// FailoverStore routes session operations to the primary (Redis) store while
// it is healthy and falls back to the in-process store otherwise. Health is
// probed at most once per interval, not on every call.
//
// Sessions created on one backend are lost when traffic shifts to the other;
// callers treat that as an ordinary expired session.
type FailoverStore struct {
	primary  Store
	fallback Store
	ping     pinger

	mu        sync.Mutex
	healthy   bool
	lastCheck time.Time
}

func NewFailoverStore(primary *RedisStore, fallback Store) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		ping:     primary,
	}
}

func (s *FailoverStore) pick(ctx context.Context) Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if now.Sub(s.lastCheck) >= healthCheckInterval {
		pctx, cancel := context.WithTimeout(ctx, time.Second)
		s.healthy = s.ping.Ping(pctx) == nil
		cancel()

		s.lastCheck = now
	}

	if s.healthy {
		return s.primary
	}

	return s.fallback
}

func (s *FailoverStore) Set(ctx context.Context, token, username string, ttl time.Duration) error {
	return s.pick(ctx).Set(ctx, token, username, ttl)
}

func (s *FailoverStore) Get(ctx context.Context, token string) (string, bool, error) {
	return s.pick(ctx).Get(ctx, token)
}

func (s *FailoverStore) Touch(ctx context.Context, token string, ttl time.Duration) error {
	return s.pick(ctx).Touch(ctx, token, ttl)
}

func (s *FailoverStore) Delete(ctx context.Context, token string) error {
	return s.pick(ctx).Delete(ctx, token)
}
