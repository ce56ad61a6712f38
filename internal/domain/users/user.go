package users

import (
	"context"
	"errors"
	"time"

	"github.com/campus-events/server/internal/auth"
)

var (
	// ErrUserNotFound is shared with the guard so a missing account maps to 404
	// wherever it surfaces.
	ErrUserNotFound       = auth.ErrUserNotFound
	ErrEmailTaken         = errors.New("Email already exists")
	ErrInvalidCredentials = errors.New("Invalid credentials")
)

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         auth.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) Principal() auth.Principal {
	return auth.Principal{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

type CreateParams struct {
	Name         string
	Email        string
	PasswordHash string
	Role         auth.Role
}

// Repository persists accounts. Create returns ErrEmailTaken on a duplicate
// email; the getters return ErrUserNotFound.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
}
