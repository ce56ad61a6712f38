package memory

import (
	"context"
	"strings"

	"github.com/campus-events/server/internal/domain/users"
)

var _ users.Repository = (*userRepository)(nil)

type userRepository struct {
	store *Store
}

func (r *userRepository) Create(_ context.Context, params users.CreateParams) (users.User, error) {
	var created users.User
	err := r.store.locked(func(d *dataset) error {
		for _, existing := range d.users {
			if strings.EqualFold(existing.Email, params.Email) {
				return users.ErrEmailTaken
			}
		}
		d.nextUserID++
		now := r.store.timestamp()
		created = users.User{
			ID:           d.nextUserID,
			Name:         params.Name,
			Email:        params.Email,
			PasswordHash: params.PasswordHash,
			Role:         params.Role,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		d.users[created.ID] = created
		return nil
	})
	return created, err
}

func (r *userRepository) GetByID(_ context.Context, id int64) (users.User, error) {
	var found users.User
	err := r.store.locked(func(d *dataset) error {
		user, ok := d.users[id]
		if !ok {
			return users.ErrUserNotFound
		}
		found = user
		return nil
	})
	return found, err
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (users.User, error) {
	var found users.User
	err := r.store.locked(func(d *dataset) error {
		for _, user := range d.users {
			if strings.EqualFold(user.Email, email) {
				found = user
				return nil
			}
		}
		return users.ErrUserNotFound
	})
	return found, err
}
