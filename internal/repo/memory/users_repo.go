package memory

import (
	"context"
	"sort"
	"sync"

	"userhub/internal/domain/user"
	"userhub/internal/repo"
)

// UsersRepo keeps users in a process-local map. Used by tests and as a
// dev fallback when no database is configured.
type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]user.User
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
	}
}

func (r *UsersRepo) Create(_ context.Context, u user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[u.Username]; ok {
		return repo.ErrUsernameTaken
	}

	r.items[u.Username] = u

	return nil
}

func (r *UsersRepo) GetByUsername(_ context.Context, username string) (user.User, error) {
	r.mu.RLock()
	u, ok := r.items[username]
	r.mu.RUnlock()

	if !ok {
		return user.User{}, repo.ErrUserNotFound
	}

	return u, nil
}

func (r *UsersRepo) List(_ context.Context) ([]user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]user.User, 0, len(r.items))

	for _, u := range r.items {
		out = append(out, u)
	}

	// map order is random; keep responses stable
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func (r *UsersRepo) Update(_ context.Context, u user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[u.Username]; !ok {
		return repo.ErrUserNotFound
	}

	r.items[u.Username] = u

	return nil
}

func (r *UsersRepo) Delete(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[username]; !ok {
		return repo.ErrUserNotFound
	}

	delete(r.items, username)

	return nil
}
