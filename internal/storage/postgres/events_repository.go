package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campus-events/server/internal/domain/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ events.Repository = (*EventRepository)(nil)

type EventRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

const eventColumns = `e.id, e.title, e.description, e.date, e.time, e.location, e.category,
       e.organizer, e.capacity, e.status, e.created_by, e.created_at, e.updated_at`

const foreignKeyViolation = "23503"

func (r *EventRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *EventRepository) Create(ctx context.Context, params events.CreateParams) (events.Event, error) {
	row := r.queryer().QueryRow(ctx, `
INSERT INTO events AS e (title, description, date, time, location, category, organizer, capacity, status, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+eventColumns,
		params.Title,
		params.Description,
		dateValue(params.Date),
		timeValue(params.Time),
		params.Location,
		string(params.Category),
		params.Organizer,
		params.Capacity,
		string(params.Status),
		params.CreatedBy,
	)
	event, err := scanEvent(row)
	if err != nil {
		return events.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (events.Event, error) {
	row := r.queryer().QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id)
	return r.scanOne(row, "get event")
}

func (r *EventRepository) Update(ctx context.Context, id int64, params events.UpdateParams) (events.Event, error) {
	row := r.queryer().QueryRow(ctx, `
UPDATE events AS e
   SET title = $2,
       description = $3,
       date = $4,
       time = $5,
       location = $6,
       category = $7,
       capacity = $8,
       updated_at = now()
 WHERE e.id = $1
RETURNING `+eventColumns,
		id,
		params.Title,
		params.Description,
		dateValue(params.Date),
		timeValue(params.Time),
		params.Location,
		string(params.Category),
		params.Capacity,
	)
	return r.scanOne(row, "update event")
}

func (r *EventRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) TransitionStatus(ctx context.Context, id int64, from, to events.Status) (events.Event, error) {
	row := r.queryer().QueryRow(ctx, `
UPDATE events AS e
   SET status = $3,
       updated_at = now()
 WHERE e.id = $1
   AND e.status = $2
RETURNING `+eventColumns,
		id, string(from), string(to),
	)
	return r.scanOne(row, "transition event")
}

func (r *EventRepository) ListApproved(ctx context.Context, filters events.SearchFilters) ([]events.Event, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT `+eventColumns+`
  FROM events e
 WHERE e.status = 'approved'
   AND ($1 = '' OR e.title ILIKE '%' || $1 || '%' OR e.location ILIKE '%' || $1 || '%')
   AND ($2 = '' OR e.category = $2)
 ORDER BY e.date DESC, e.time DESC, e.id DESC
`, escapeILIKEPattern(filters.Query), string(filters.Category))
	if err != nil {
		return nil, fmt.Errorf("list approved events: %w", err)
	}
	return collectEvents(rows)
}

func (r *EventRepository) ListPending(ctx context.Context) ([]events.Event, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT `+eventColumns+`
  FROM events e
 WHERE e.status = 'pending'
 ORDER BY e.created_at ASC, e.id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list pending events: %w", err)
	}
	return collectEvents(rows)
}

func (r *EventRepository) CountRegistrations(ctx context.Context, eventID int64) (int, error) {
	var count int
	err := r.queryer().QueryRow(ctx, `SELECT count(*) FROM registrations WHERE event_id = $1`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}

func (r *EventRepository) ListAttendees(ctx context.Context, eventID int64) ([]events.Attendee, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT u.id, u.name, u.email, r.registered_at
  FROM registrations r
  JOIN users u ON u.id = r.user_id
 WHERE r.event_id = $1
 ORDER BY r.registered_at ASC, u.id ASC
`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	attendees := []events.Attendee{}
	for rows.Next() {
		var a events.Attendee
		if err := rows.Scan(&a.UserID, &a.Name, &a.Email, &a.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		attendees = append(attendees, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendees: %w", err)
	}
	return attendees, nil
}

func (r *EventRepository) ListUserEvents(ctx context.Context, userID int64) ([]events.RegisteredEvent, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT `+eventColumns+`, r.registered_at
  FROM registrations r
  JOIN events e ON e.id = r.event_id
 WHERE r.user_id = $1
 ORDER BY r.registered_at DESC, e.id DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user events: %w", err)
	}
	defer rows.Close()

	out := []events.RegisteredEvent{}
	for rows.Next() {
		var registered events.RegisteredEvent
		event, err := scanEvent(rows, &registered.RegisteredAt)
		if err != nil {
			return nil, fmt.Errorf("scan user event: %w", err)
		}
		registered.Event = event
		out = append(out, registered)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user events: %w", err)
	}
	return out, nil
}

func (r *EventRepository) DeleteRegistration(ctx context.Context, userID, eventID int64) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM registrations WHERE user_id = $1 AND event_id = $2`, userID, eventID)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrRegistrationNotFound
	}
	return nil
}

func (r *EventRepository) BeginTx(ctx context.Context) (events.Repository, events.TxCommitter, error) {
	if r.tx != nil {
		return r, nestedTx{}, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	return &EventRepository{pool: r.pool, tx: tx}, tx, nil
}

func (r *EventRepository) LockEvent(ctx context.Context, id int64) (events.Event, error) {
	if r.tx == nil {
		return events.Event{}, fmt.Errorf("lock event: no transaction")
	}
	row := r.tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1 FOR UPDATE`, id)
	return r.scanOne(row, "lock event")
}

func (r *EventRepository) RegistrationExists(ctx context.Context, userID, eventID int64) (bool, error) {
	var exists bool
	err := r.queryer().QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM registrations WHERE user_id = $1 AND event_id = $2)
`, userID, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return exists, nil
}

func (r *EventRepository) CreateRegistration(ctx context.Context, userID, eventID int64) (events.Registration, error) {
	registration := events.Registration{UserID: userID, EventID: eventID}
	err := r.queryer().QueryRow(ctx, `
INSERT INTO registrations (user_id, event_id)
VALUES ($1, $2)
RETURNING registered_at
`, userID, eventID).Scan(&registration.RegisteredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return events.Registration{}, events.ErrDuplicateRegistration
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return events.Registration{}, events.ErrNotFound
		}
		return events.Registration{}, fmt.Errorf("insert registration: %w", err)
	}
	return registration, nil
}

func (r *EventRepository) scanOne(row pgx.Row, op string) (events.Event, error) {
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return events.Event{}, events.ErrNotFound
		}
		return events.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	return event, nil
}

// scanEvent reads eventColumns followed by any extra destinations.
func scanEvent(row pgx.Row, extra ...any) (events.Event, error) {
	var (
		event    events.Event
		date     pgtype.Date
		clock    pgtype.Time
		category string
		status   string
	)
	dest := []any{
		&event.ID,
		&event.Title,
		&event.Description,
		&date,
		&clock,
		&event.Location,
		&category,
		&event.Organizer,
		&event.Capacity,
		&status,
		&event.CreatedBy,
		&event.CreatedAt,
		&event.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return events.Event{}, err
	}
	event.Date = date.Time
	event.Time = events.TimeOfDayFromMicros(clock.Microseconds)
	event.Category = events.Category(category)
	event.Status = events.Status(status)
	return event, nil
}

func collectEvents(rows pgx.Rows) ([]events.Event, error) {
	defer rows.Close()
	list := []events.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		list = append(list, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return list, nil
}

func dateValue(d time.Time) pgtype.Date {
	return pgtype.Date{Time: d, Valid: true}
}

func timeValue(t events.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Micros(), Valid: true}
}

// nestedTx is returned when BeginTx is called on a repository that is
// already inside a transaction; the outer transaction owns the outcome.
type nestedTx struct{}

func (nestedTx) Commit(context.Context) error   { return nil }
func (nestedTx) Rollback(context.Context) error { return nil }
