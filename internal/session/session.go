package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"time"
)

// Store is the backend a Manager persists sessions in. Implementations
// treat expired entries the same as absent ones.
type Store interface {
	Set(ctx context.Context, token, username string, ttl time.Duration) error
	Get(ctx context.Context, token string) (string, bool, error)
	Touch(ctx context.Context, token string, ttl time.Duration) error
	Delete(ctx context.Context, token string) error
}

// Manager issues opaque session tokens and binds them to usernames with a
// rolling TTL. Cookie values are HMAC-signed with the configured secret so
// a tampered cookie never reaches the store.
type Manager struct {
	store  Store
	ttl    time.Duration
	secret []byte
}

func NewManager(store Store, ttl time.Duration, secret string) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &Manager{
		store:  store,
		ttl:    ttl,
		secret: []byte(secret),
	}
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create generates a cryptographically random token and stores the binding.
func (m *Manager) Create(ctx context.Context, username string) (string, error) {
	buf := make([]byte, 32)

	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	token := base64.RawURLEncoding.EncodeToString(buf)

	if err := m.store.Set(ctx, token, username, m.ttl); err != nil {
		return "", err
	}

	return token, nil
}

// Resolve returns the username bound to a live token and extends its expiry
// from now ("rolling" semantics). Expired and unknown tokens look the same.
func (m *Manager) Resolve(ctx context.Context, token string) (string, bool, error) {
	username, ok, err := m.store.Get(ctx, token)

	if err != nil || !ok {
		return "", false, err
	}

	if err := m.store.Touch(ctx, token, m.ttl); err != nil {
		return "", false, err
	}

	return username, true, nil
}

// Destroy removes the binding. Destroying an absent token is a no-op.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	return m.store.Delete(ctx, token)
}

// Encode produces the signed cookie value "token.signature".
func (m *Manager) Encode(token string) string {
	return token + "." + m.sign(token)
}

// Decode verifies a cookie value and returns the embedded token.
func (m *Manager) Decode(value string) (string, bool) {
	token, sig, found := strings.Cut(value, ".")

	if !found || token == "" {
		return "", false
	}

	if !hmac.Equal([]byte(sig), []byte(m.sign(token))) {
		return "", false
	}

	return token, true
}

func (m *Manager) sign(token string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(token))

	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
