package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campus-events/server/internal/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ auth.SessionStore = (*SessionRepository)(nil)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func (r *SessionRepository) Create(ctx context.Context, record auth.SessionRecord) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO sessions (token_hash, user_id, created_at, expires_at)
VALUES ($1, $2, $3, $4)
`, record.TokenHash, record.UserID, record.CreatedAt, record.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Lookup(ctx context.Context, tokenHash string) (auth.SessionRecord, error) {
	var record auth.SessionRecord
	err := r.pool.QueryRow(ctx, `
SELECT token_hash, user_id, created_at, expires_at
  FROM sessions
 WHERE token_hash = $1
`, tokenHash).Scan(&record.TokenHash, &record.UserID, &record.CreatedAt, &record.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.SessionRecord{}, auth.ErrSessionNotFound
		}
		return auth.SessionRecord{}, fmt.Errorf("lookup session: %w", err)
	}
	return record, nil
}

func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
