package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/campus-events/server/internal/auth"
	"github.com/campus-events/server/internal/domain/events"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func createEvent(t *testing.T, ctx context.Context, pool *pgxpool.Pool, title, date, clock string, status events.Status) events.Event {
	t.Helper()
	day, err := events.ParseDate(date)
	require.NoError(t, err)
	tod, err := events.ParseTimeOfDay(clock)
	require.NoError(t, err)

	repo := &EventRepository{pool: pool}
	event, err := repo.Create(ctx, events.CreateParams{
		Title:       title,
		Description: "About " + title,
		Date:        day,
		Time:        tod,
		Location:    "Hall " + title,
		Category:    events.CategoryWorkshop,
		Organizer:   "Org",
		Capacity:    2,
		Status:      status,
	})
	require.NoError(t, err)
	return event
}

func TestEventRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo := &EventRepository{pool: pool}
	creator := insertUser(t, ctx, pool, "staff@campus.test", auth.RoleStaff)

	created, err := repo.Create(ctx, events.CreateParams{
		Title:       "Poetry night",
		Description: "<p>Open mic</p>",
		Date:        time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		Time:        events.TimeOfDay{Hour: 19, Minute: 45, Second: 30},
		Location:    "Cafe",
		Category:    events.CategoryActivity,
		Organizer:   "Lit Society",
		Capacity:    40,
		Status:      events.StatusPending,
		CreatedBy:   &creator.ID,
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026-04-02", got.Date.Format(events.DateLayout))
	assert.Equal(t, "19:45:30", got.Time.String())
	assert.Equal(t, events.StatusPending, got.Status)
	require.NotNil(t, got.CreatedBy)
	assert.Equal(t, creator.ID, *got.CreatedBy)

	updated, err := repo.Update(ctx, created.ID, events.UpdateParams{
		Title:       "Poetry slam",
		Description: got.Description,
		Date:        got.Date,
		Time:        events.TimeOfDay{Hour: 20},
		Location:    got.Location,
		Category:    events.CategoryOther,
		Capacity:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, "Poetry slam", updated.Title)
	assert.Equal(t, "20:00", updated.Time.String())
	assert.Equal(t, "Lit Society", updated.Organizer)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, events.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, 9999), events.ErrNotFound)
}

func TestEventRepositoryTransitionStatus(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo := &EventRepository{pool: pool}
	event := createEvent(t, ctx, pool, "Review me", "2026-05-01", "10:00", events.StatusPending)

	approved, err := repo.TransitionStatus(ctx, event.ID, events.StatusPending, events.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, events.StatusApproved, approved.Status)

	_, err = repo.TransitionStatus(ctx, event.ID, events.StatusPending, events.StatusRejected)
	assert.ErrorIs(t, err, events.ErrNotFound)
}

func TestEventRepositoryListApproved(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo := &EventRepository{pool: pool}

	a := createEvent(t, ctx, pool, "Alpha", "2026-06-01", "09:00", events.StatusApproved)
	b := createEvent(t, ctx, pool, "Bravo", "2026-06-10", "09:00", events.StatusApproved)
	c := createEvent(t, ctx, pool, "Charlie", "2026-06-10", "18:00", events.StatusApproved)
	d := createEvent(t, ctx, pool, "100% Delta", "2026-06-10", "09:00", events.StatusApproved)
	createEvent(t, ctx, pool, "Echo", "2026-07-01", "09:00", events.StatusPending)

	list, err := repo.ListApproved(ctx, events.SearchFilters{})
	require.NoError(t, err)
	var ids []int64
	for _, e := range list {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{c.ID, d.ID, b.ID, a.ID}, ids)

	found, err := repo.ListApproved(ctx, events.SearchFilters{Query: "hall brav"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, b.ID, found[0].ID)

	found, err = repo.ListApproved(ctx, events.SearchFilters{Query: "100%"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, d.ID, found[0].ID)

	found, err = repo.ListApproved(ctx, events.SearchFilters{Query: "%"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = repo.ListApproved(ctx, events.SearchFilters{Category: events.CategorySeminar})
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NotNil(t, found)
}

func TestEventRepositoryListPending(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo := &EventRepository{pool: pool}

	first := createEvent(t, ctx, pool, "First", "2026-09-01", "09:00", events.StatusPending)
	second := createEvent(t, ctx, pool, "Second", "2026-01-01", "09:00", events.StatusPending)
	createEvent(t, ctx, pool, "Live", "2026-01-01", "09:00", events.StatusApproved)

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)
}

func TestEventRepositoryRegistrations(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo := &EventRepository{pool: pool}
	event := createEvent(t, ctx, pool, "Talk", "2026-06-01", "09:00", events.StatusApproved)
	later := createEvent(t, ctx, pool, "Later", "2026-06-02", "09:00", events.StatusApproved)
	ann := insertUser(t, ctx, pool, "ann@campus.test", auth.RoleStudent)
	ben := insertUser(t, ctx, pool, "ben@campus.test", auth.RoleStudent)

	_, err := repo.CreateRegistration(ctx, ben.ID, event.ID)
	require.NoError(t, err)
	_, err = repo.CreateRegistration(ctx, ann.ID, event.ID)
	require.NoError(t, err)
	_, err = repo.CreateRegistration(ctx, ann.ID, later.ID)
	require.NoError(t, err)

	_, err = repo.CreateRegistration(ctx, ann.ID, event.ID)
	assert.ErrorIs(t, err, events.ErrDuplicateRegistration)
	_, err = repo.CreateRegistration(ctx, ann.ID, 424242)
	assert.ErrorIs(t, err, events.ErrNotFound)

	count, err := repo.CountRegistrations(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	attendees, err := repo.ListAttendees(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 2)
	assert.Equal(t, ben.ID, attendees[0].UserID)
	assert.Equal(t, "ann@campus.test", attendees[1].Email)

	mine, err := repo.ListUserEvents(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, later.ID, mine[0].ID)
	assert.False(t, mine[0].RegisteredAt.IsZero())

	require.NoError(t, repo.DeleteRegistration(ctx, ann.ID, later.ID))
	assert.ErrorIs(t, repo.DeleteRegistration(ctx, ann.ID, later.ID), events.ErrRegistrationNotFound)

	require.NoError(t, repo.Delete(ctx, event.ID))
	count, err = repo.CountRegistrations(ctx, event.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEventRepositoryTxRollback(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	repo := &EventRepository{pool: pool}
	event := createEvent(t, ctx, pool, "Tx", "2026-06-01", "09:00", events.StatusApproved)
	user := insertUser(t, ctx, pool, "tx@campus.test", auth.RoleStudent)

	txRepo, tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	_, err = txRepo.LockEvent(ctx, event.ID)
	require.NoError(t, err)
	_, err = txRepo.CreateRegistration(ctx, user.ID, event.ID)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	exists, err := repo.RegistrationExists(ctx, user.ID, event.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.LockEvent(ctx, event.ID)
	assert.Error(t, err)
}

func TestRegisterLastSeatUnderContention(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	service := events.NewService(&EventRepository{pool: pool}, zerolog.Nop())
	event := createEvent(t, ctx, pool, "Hot ticket", "2026-06-01", "09:00", events.StatusApproved)

	const contenders = 12
	var won, full atomic.Int32
	var g errgroup.Group
	for i := 0; i < contenders; i++ {
		user := insertUser(t, ctx, pool, fmt.Sprintf("u%d@campus.test", i), auth.RoleStudent)
		g.Go(func() error {
			_, err := service.Register(ctx, user.ID, event.ID)
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, events.ErrCapacityExceeded):
				full.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 2, won.Load())
	assert.EqualValues(t, contenders-2, full.Load())

	count, err := (&EventRepository{pool: pool}).CountRegistrations(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
