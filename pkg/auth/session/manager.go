// Package session keeps the server-side record of issued access tokens so a
// logout revokes a token before its JWT expiry.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rtwroastery/roastery-backend/pkg/config"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	errBlankAccessID   = errors.New("access id is required")
)

// Store is the redis surface sessions live in.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is all the auth middleware needs.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Session is one live access token.
type Session struct {
	AccessID string    `json:"-"`
	UserID   uuid.UUID `json:"user_id"`
	OpenedAt time.Time `json:"opened_at"`
}

type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager sizes session lifetime to the access token TTL.
func NewManager(store Store, cfg config.JWTConfig) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	ttl := cfg.TokenTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive, got %s", ttl)
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// NewAccessID mints the jti shared by the JWT and its session key.
func NewAccessID() string {
	return uuid.NewString()
}

func (m *Manager) Open(ctx context.Context, accessID string, userID uuid.UUID) error {
	key, err := m.key(accessID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(Session{UserID: userID, OpenedAt: m.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return m.store.Set(ctx, key, string(payload), m.ttl)
}

// Lookup loads the session for accessID or returns ErrSessionNotFound.
func (m *Manager) Lookup(ctx context.Context, accessID string) (Session, error) {
	key, err := m.key(accessID)
	if err != nil {
		return Session{}, ErrSessionNotFound
	}
	raw, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		return Session{}, ErrSessionNotFound
	case err != nil:
		return Session{}, fmt.Errorf("load session: %w", err)
	case raw == "":
		return Session{}, ErrSessionNotFound
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Session{}, fmt.Errorf("decode session %s: %w", accessID, err)
	}
	s.AccessID = accessID
	return s, nil
}

// Owner is the user a live access id belongs to.
func (m *Manager) Owner(ctx context.Context, accessID string) (uuid.UUID, error) {
	s, err := m.Lookup(ctx, accessID)
	if err != nil {
		return uuid.Nil, err
	}
	return s.UserID, nil
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	_, err := m.Lookup(ctx, accessID)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Revoke is idempotent; revoking a missing session is not an error.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	key, err := m.key(accessID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(accessID string) (string, error) {
	accessID = strings.TrimSpace(accessID)
	if accessID == "" {
		return "", errBlankAccessID
	}
	return m.store.AccessSessionKey(accessID), nil
}
