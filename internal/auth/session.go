package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRecord is the server-side half of a session. Only the SHA-256 of the
// cookie token is ever persisted.
type SessionRecord struct {
	TokenHash string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (r SessionRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// SessionStore persists session records. Lookup and Delete return
// ErrSessionNotFound for unknown hashes; Delete callers may ignore it.
type SessionStore interface {
	Create(ctx context.Context, record SessionRecord) error
	Lookup(ctx context.Context, tokenHash string) (SessionRecord, error)
	Delete(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Session is the per-request session context handed to the guard.
// A zero Session means the caller presented no session cookie.
type Session struct {
	Token string
}

func (s Session) Present() bool {
	return strings.TrimSpace(s.Token) != ""
}

type sessionContextKey struct{}

func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

func SessionFromContext(ctx context.Context) Session {
	if session, ok := ctx.Value(sessionContextKey{}).(Session); ok {
		return session
	}
	return Session{}
}

// Sessions issues, resolves and ends sessions on top of a SessionStore.
type Sessions struct {
	store SessionStore
	ttl   time.Duration
	now   func() time.Time
}

func NewSessions(store SessionStore, ttl time.Duration) *Sessions {
	return &Sessions{store: store, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (s *Sessions) WithClock(now func() time.Time) *Sessions {
	s.now = now
	return s
}

func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Start creates a session for userID and returns the opaque cookie token.
func (s *Sessions) Start(ctx context.Context, userID int64) (string, time.Time, error) {
	token, err := generateSecureToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate session token: %w", err)
	}
	now := s.now().UTC()
	record := SessionRecord{
		TokenHash: HashToken(token),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, record); err != nil {
		return "", time.Time{}, fmt.Errorf("store session: %w", err)
	}
	return token, record.ExpiresAt, nil
}

// Resolve maps a session to its user id. Missing, unknown and expired
// sessions all yield ErrSessionNotFound.
func (s *Sessions) Resolve(ctx context.Context, session Session) (int64, error) {
	if !session.Present() {
		return 0, ErrSessionNotFound
	}
	hash := HashToken(session.Token)
	record, err := s.store.Lookup(ctx, hash)
	if err != nil {
		return 0, err
	}
	if record.Expired(s.now()) {
		_ = s.store.Delete(ctx, hash)
		return 0, ErrSessionNotFound
	}
	return record.UserID, nil
}

// End removes the session. Ending an absent or unknown session succeeds.
func (s *Sessions) End(ctx context.Context, session Session) error {
	if !session.Present() {
		return nil
	}
	err := s.store.Delete(ctx, HashToken(session.Token))
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Purge drops every session that has expired by now.
func (s *Sessions) Purge(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now())
}

// HashToken returns the hex SHA-256 of a session token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
