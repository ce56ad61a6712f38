package events

import (
	"context"
	"errors"
)

var (
	// ErrNotFound covers both a missing event and one in the wrong state for
	// the operation (e.g. approving an event that is no longer pending).
	ErrNotFound              = errors.New("Event not found")
	ErrRegistrationNotFound  = errors.New("Registration not found")
	ErrDuplicateRegistration = errors.New("Already registered for this event")
	ErrCapacityExceeded      = errors.New("Event is at full capacity")
)

// Repository is the event store. Getters and mutations of a single event
// return ErrNotFound when no row matches.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Event, error)
	GetByID(ctx context.Context, id int64) (Event, error)
	Update(ctx context.Context, id int64, params UpdateParams) (Event, error)
	Delete(ctx context.Context, id int64) error
	// TransitionStatus moves id from `from` to `to` in one conditional update.
	TransitionStatus(ctx context.Context, id int64, from, to Status) (Event, error)

	// ListApproved orders by date, then time, then id, all descending.
	ListApproved(ctx context.Context, filters SearchFilters) ([]Event, error)
	// ListPending orders by creation time, oldest first.
	ListPending(ctx context.Context) ([]Event, error)

	CountRegistrations(ctx context.Context, eventID int64) (int, error)
	// ListAttendees orders by registration time, earliest first.
	ListAttendees(ctx context.Context, eventID int64) ([]Attendee, error)
	// ListUserEvents orders by registration time, latest first.
	ListUserEvents(ctx context.Context, userID int64) ([]RegisteredEvent, error)
	// DeleteRegistration returns ErrRegistrationNotFound when nothing was removed.
	DeleteRegistration(ctx context.Context, userID, eventID int64) error

	// BeginTx returns a repository bound to a new transaction.
	BeginTx(ctx context.Context) (Repository, TxCommitter, error)
	// LockEvent loads the event and holds it exclusively until the
	// surrounding transaction ends.
	LockEvent(ctx context.Context, id int64) (Event, error)
	RegistrationExists(ctx context.Context, userID, eventID int64) (bool, error)
	// CreateRegistration returns ErrDuplicateRegistration if the pair exists.
	CreateRegistration(ctx context.Context, userID, eventID int64) (Registration, error)
}

type TxCommitter interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// RegistrationNotifier is told about registrations after they commit.
type RegistrationNotifier interface {
	RegistrationCreated(ctx context.Context, registration Registration) error
}
