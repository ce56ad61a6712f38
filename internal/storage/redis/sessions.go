// Package redis stores login sessions in Redis so they survive restarts and
// can be shared between server instances.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/campus-events/server/internal/auth"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "campus:session:"

var _ auth.SessionStore = (*SessionStore)(nil)

// SessionStore keeps one key per session. Redis key expiry does the purging,
// so DeleteExpired has nothing to do.
type SessionStore struct {
	client goredis.Cmdable
	now    func() time.Time
}

type sessionValue struct {
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewSessionStore(client goredis.Cmdable) *SessionStore {
	return &SessionStore{client: client, now: time.Now}
}

// WithClock replaces the time source used to compute key TTLs.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

// NewClient parses a redis:// URL and verifies the server is reachable.
func NewClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MaxRetries = 3

	client := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func sessionKey(tokenHash string) string {
	return keyPrefix + tokenHash
}

func (s *SessionStore) Create(ctx context.Context, record auth.SessionRecord) error {
	ttl := record.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(sessionValue{
		UserID:    record.UserID,
		CreatedAt: record.CreatedAt.UTC(),
		ExpiresAt: record.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(record.TokenHash), string(payload), ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *SessionStore) Lookup(ctx context.Context, tokenHash string) (auth.SessionRecord, error) {
	raw, err := s.client.Get(ctx, sessionKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return auth.SessionRecord{}, auth.ErrSessionNotFound
		}
		return auth.SessionRecord{}, fmt.Errorf("lookup session: %w", err)
	}

	var value sessionValue
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return auth.SessionRecord{}, fmt.Errorf("decode session: %w", err)
	}
	return auth.SessionRecord{
		TokenHash: tokenHash,
		UserID:    value.UserID,
		CreatedAt: value.CreatedAt,
		ExpiresAt: value.ExpiresAt,
	}, nil
}

func (s *SessionStore) Delete(ctx context.Context, tokenHash string) error {
	removed, err := s.client.Del(ctx, sessionKey(tokenHash)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if removed == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Ping reports whether Redis answers.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
