package storage

import (
	"context"

	"github.com/campus-events/server/internal/auth"
	"github.com/campus-events/server/internal/domain/events"
	"github.com/campus-events/server/internal/domain/users"
)

// Repository groups data access by domain. Postgres backs production; the
// in-memory store backs tests and local development.
type Repository interface {
	Users() users.Repository
	Events() events.Repository
	Sessions() auth.SessionStore

	Ping(ctx context.Context) error
}
