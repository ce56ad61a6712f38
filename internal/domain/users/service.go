package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/campus-events/server/internal/auth"
	"github.com/campus-events/server/internal/sanitize"
	"github.com/campus-events/server/internal/validation"
	"github.com/rs/zerolog"
)

// RegisterInput is the self-service signup payload. Role is optional and
// defaults to student.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=150"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=student staff admin"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Service handles account registration and credential checks
type Service struct {
	repo   Repository
	logger zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "users").Logger(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	input.Role = strings.ToLower(strings.TrimSpace(input.Role))
	if err := validation.Struct(input); err != nil {
		return User{}, err
	}
	if !sanitize.IsPlainText(input.Name) {
		return User{}, validation.Invalid("name", "must not contain HTML markup")
	}
	if len(input.Password) > auth.MaxPasswordBytes {
		return User{}, validation.Invalid("password", "must be at most 72 bytes")
	}

	role := auth.DefaultRole
	if input.Role != "" {
		parsed, err := auth.ParseRole(input.Role)
		if err != nil {
			return User{}, validation.Invalid("role", "is not a known role")
		}
		role = parsed
	}

	if _, err := s.repo.GetByEmail(ctx, input.Email); err == nil {
		return User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, fmt.Errorf("check email: %w", err)
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return User{}, err
	}

	user, err := s.repo.Create(ctx, CreateParams{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")
	return user, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, input LoginInput) (User, error) {
	input.Email = normalizeEmail(input.Email)
	if err := validation.Struct(input); err != nil {
		return User{}, err
	}

	user, err := s.repo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// burn comparable time so response latency does not reveal the account
			_ = auth.CheckPassword(s.dummyPasswordHash(), input.Password)
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := auth.CheckPassword(user.PasswordHash, input.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	return user, nil
}

// FindPrincipal implements auth.PrincipalFinder.
func (s *Service) FindPrincipal(ctx context.Context, userID int64) (auth.Principal, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return auth.Principal{}, err
	}
	return user.Principal(), nil
}

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, userID int64) (User, error) {
	return s.repo.GetByID(ctx, userID)
}

// EnsureAdmin creates an admin account unless one with the same email exists.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return false, fmt.Errorf("check admin user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	if name == "" {
		name = "Administrator"
	}
	if _, err := s.repo.Create(ctx, CreateParams{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
	}); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return false, nil
		}
		return false, fmt.Errorf("create admin user: %w", err)
	}
	return true, nil
}

func (s *Service) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := auth.HashPassword("campus-events-dummy-password")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
