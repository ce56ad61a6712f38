package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/campus-events/server/internal/auth"
	"github.com/campus-events/server/internal/domain/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo := &UserRepository{pool: pool}

	created := insertUser(t, ctx, pool, "mia@campus.test", auth.RoleAdmin)
	assert.NotZero(t, created.ID)
	assert.Equal(t, auth.RoleAdmin, created.Role)

	byEmail, err := repo.GetByEmail(ctx, "MIA@campus.test")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "mia@campus.test", byID.Email)

	_, err = repo.Create(ctx, users.CreateParams{Name: "Dup", Email: "Mia@Campus.test", PasswordHash: "x", Role: auth.RoleStudent})
	assert.ErrorIs(t, err, users.ErrEmailTaken)

	_, err = repo.GetByID(ctx, 5555)
	assert.ErrorIs(t, err, users.ErrUserNotFound)
	_, err = repo.GetByEmail(ctx, "nobody@campus.test")
	assert.ErrorIs(t, err, users.ErrUserNotFound)
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo := &SessionRepository{pool: pool}
	user := insertUser(t, ctx, pool, "s@campus.test", auth.RoleStudent)
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, repo.Create(ctx, auth.SessionRecord{TokenHash: "live", UserID: user.ID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, auth.SessionRecord{TokenHash: "stale", UserID: user.ID, CreatedAt: now, ExpiresAt: now.Add(-time.Hour)}))

	record, err := repo.Lookup(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, user.ID, record.UserID)
	assert.True(t, record.ExpiresAt.Equal(now.Add(time.Hour)))

	purged, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	require.NoError(t, repo.Delete(ctx, "live"))
	assert.ErrorIs(t, repo.Delete(ctx, "live"), auth.ErrSessionNotFound)
	_, err = repo.Lookup(ctx, "live")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestMigrationVersion(t *testing.T) {
	_, dbURL := setupPostgres(t)

	version, dirty, err := MigrationVersion(dbURL, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)
	assert.False(t, dirty)
}
