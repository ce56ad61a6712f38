package auth

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("Authentication required")
	ErrForbidden       = errors.New("Permission denied")
	// ErrUserNotFound is returned when a valid session points at a user
	// that no longer exists.
	ErrUserNotFound = errors.New("User not found")
)

// Principal is the authenticated caller.
type Principal struct {
	ID    int64
	Name  string
	Email string
	Role  Role
}

// PrincipalFinder loads the caller behind a session. Implementations return
// ErrUserNotFound when the user is gone.
type PrincipalFinder interface {
	FindPrincipal(ctx context.Context, userID int64) (Principal, error)
}

type Guard struct {
	sessions *Sessions
	users    PrincipalFinder
}

func NewGuard(sessions *Sessions, users PrincipalFinder) *Guard {
	return &Guard{sessions: sessions, users: users}
}

// RequireRole resolves session to a principal whose role is in allowed.
// It has no side effects beyond dropping an expired session record.
func (g *Guard) RequireRole(ctx context.Context, session Session, allowed RoleSet) (Principal, error) {
	userID, err := g.sessions.Resolve(ctx, session)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Principal{}, ErrUnauthenticated
		}
		return Principal{}, fmt.Errorf("resolve session: %w", err)
	}

	principal, err := g.users.FindPrincipal(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Principal{}, ErrUserNotFound
		}
		return Principal{}, fmt.Errorf("load principal: %w", err)
	}

	if !allowed.Allows(principal.Role) {
		return Principal{}, ErrForbidden
	}
	return principal, nil
}
