package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campus-events/server/internal/auth"
	"github.com/rs/zerolog"
)

type Service struct {
	repo     Repository
	notifier RegistrationNotifier
	logger   zerolog.Logger
}

type Option func(*Service)

// WithNotifier hooks post-commit registration notifications.
func WithNotifier(n RegistrationNotifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func NewService(repo Repository, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: logger.With().Str("component", "events").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new pending event on behalf of creator. The organizer
// defaults to the creator's name.
func (s *Service) Create(ctx context.Context, creator auth.Principal, input EventInput) (Event, error) {
	params, err := input.normalize()
	if err != nil {
		return Event{}, err
	}
	if params.Organizer == "" {
		params.Organizer = creator.Name
	}
	params.Status = StatusPending
	createdBy := creator.ID
	params.CreatedBy = &createdBy

	event, err := s.repo.Create(ctx, params)
	if err != nil {
		return Event{}, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info().Int64("event_id", event.ID).Int64("created_by", creator.ID).Msg("event created")
	return event, nil
}

// Edit applies a partial update to an event in any status. Supplied fields
// are validated exactly as on creation; the rest are left as stored.
func (s *Service) Edit(ctx context.Context, id int64, patch EventPatch) (Event, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Event{}, err
	}

	params, err := patch.apply(current)
	if err != nil {
		return Event{}, err
	}

	updated, err := s.repo.Update(ctx, id, params)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Event{}, err
		}
		return Event{}, fmt.Errorf("update event: %w", err)
	}
	return updated, nil
}

// Delete removes the event and, through the store, its registrations.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func (s *Service) Approve(ctx context.Context, id int64) (Event, error) {
	return s.review(ctx, id, StatusApproved)
}

func (s *Service) Reject(ctx context.Context, id int64) (Event, error) {
	return s.review(ctx, id, StatusRejected)
}

// review moves a pending event to next. Anything not pending is reported as
// ErrNotFound.
func (s *Service) review(ctx context.Context, id int64, next Status) (Event, error) {
	if !StatusPending.CanTransitionTo(next) {
		return Event{}, fmt.Errorf("invalid review outcome %q", next)
	}
	event, err := s.repo.TransitionStatus(ctx, id, StatusPending, next)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Event{}, err
		}
		return Event{}, fmt.Errorf("transition event: %w", err)
	}
	s.logger.Info().Int64("event_id", id).Str("status", string(next)).Msg("event reviewed")
	return event, nil
}

// Register claims one seat of an approved event for userID. The event row is
// locked for the duration so concurrent attempts on the last seat serialize.
func (s *Service) Register(ctx context.Context, userID, eventID int64) (Registration, error) {
	txRepo, tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return Registration{}, fmt.Errorf("begin registration: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	event, err := txRepo.LockEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Registration{}, err
		}
		return Registration{}, fmt.Errorf("lock event: %w", err)
	}
	if event.Status != StatusApproved {
		return Registration{}, ErrNotFound
	}

	exists, err := txRepo.RegistrationExists(ctx, userID, eventID)
	if err != nil {
		return Registration{}, fmt.Errorf("check registration: %w", err)
	}
	if exists {
		return Registration{}, ErrDuplicateRegistration
	}

	count, err := txRepo.CountRegistrations(ctx, eventID)
	if err != nil {
		return Registration{}, fmt.Errorf("count registrations: %w", err)
	}
	if count >= event.Capacity {
		return Registration{}, ErrCapacityExceeded
	}

	registration, err := txRepo.CreateRegistration(ctx, userID, eventID)
	if err != nil {
		if errors.Is(err, ErrDuplicateRegistration) {
			return Registration{}, err
		}
		return Registration{}, fmt.Errorf("create registration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Registration{}, fmt.Errorf("commit registration: %w", err)
	}
	committed = true

	if s.notifier != nil {
		if err := s.notifier.RegistrationCreated(ctx, registration); err != nil {
			s.logger.Warn().Err(err).
				Int64("event_id", eventID).
				Int64("user_id", userID).
				Msg("registration notification failed")
		}
	}
	return registration, nil
}

// CancelRegistration removes the caller's own registration.
func (s *Service) CancelRegistration(ctx context.Context, userID, eventID int64) error {
	if err := s.repo.DeleteRegistration(ctx, userID, eventID); err != nil {
		if errors.Is(err, ErrRegistrationNotFound) {
			return err
		}
		return fmt.Errorf("cancel registration: %w", err)
	}
	return nil
}

func (s *Service) ListApproved(ctx context.Context) ([]Event, error) {
	return s.repo.ListApproved(ctx, SearchFilters{})
}

// Search matches query against title or location, case-insensitively, and
// category exactly. An unknown category matches nothing.
func (s *Service) Search(ctx context.Context, query, category string) ([]Event, error) {
	filters := SearchFilters{
		Query:    strings.TrimSpace(query),
		Category: Category(strings.ToLower(strings.TrimSpace(category))),
	}
	if filters.Category != "" && !filters.Category.Valid() {
		return []Event{}, nil
	}
	return s.repo.ListApproved(ctx, filters)
}

// Detail returns an approved event and its registration count.
func (s *Service) Detail(ctx context.Context, id int64) (Detail, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if event.Status != StatusApproved {
		return Detail{}, ErrNotFound
	}
	count, err := s.repo.CountRegistrations(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("count registrations: %w", err)
	}
	return Detail{Event: event, RegisteredCount: count}, nil
}

func (s *Service) ListPending(ctx context.Context) ([]Event, error) {
	return s.repo.ListPending(ctx)
}

// Attendees lists registrants of an event in any status.
func (s *Service) Attendees(ctx context.Context, eventID int64) ([]Attendee, error) {
	if _, err := s.repo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListAttendees(ctx, eventID)
}

func (s *Service) UserEvents(ctx context.Context, userID int64) ([]RegisteredEvent, error) {
	return s.repo.ListUserEvents(ctx, userID)
}

// Get returns an event in any status.
func (s *Service) Get(ctx context.Context, id int64) (Event, error) {
	return s.repo.GetByID(ctx, id)
}
