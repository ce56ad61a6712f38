package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/campus-events/server/internal/domain/events"
	"github.com/campus-events/server/internal/domain/users"
	"github.com/campus-events/server/internal/email"
	"github.com/campus-events/server/internal/metrics"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
)

// SessionCleanupArgs triggers a purge of expired session records.
type SessionCleanupArgs struct{}

func (SessionCleanupArgs) Kind() string { return JobKindSessionCleanup }

type SessionPurger interface {
	Purge(ctx context.Context) (int64, error)
}

type SessionCleanupWorker struct {
	river.WorkerDefaults[SessionCleanupArgs]
	Sessions SessionPurger
	Logger   zerolog.Logger
}

func (w SessionCleanupWorker) Work(ctx context.Context, job *river.Job[SessionCleanupArgs]) error {
	if w.Sessions == nil {
		return errors.New("session store not configured")
	}

	purged, err := w.Sessions.Purge(ctx)
	if err != nil {
		return fmt.Errorf("purge expired sessions: %w", err)
	}
	metrics.SessionsPurgedTotal.Add(float64(purged))
	if purged > 0 {
		w.Logger.Info().Int64("purged", purged).Msg("expired sessions removed")
	}
	return nil
}

// RegistrationConfirmationArgs identifies the registration to confirm by email.
type RegistrationConfirmationArgs struct {
	UserID  int64 `json:"user_id"`
	EventID int64 `json:"event_id"`
}

func (RegistrationConfirmationArgs) Kind() string { return JobKindRegistrationConfirmation }

func (RegistrationConfirmationArgs) InsertOpts() river.InsertOpts {
	return InsertOptsForKind(JobKindRegistrationConfirmation)
}

type UserLookup interface {
	Get(ctx context.Context, userID int64) (users.User, error)
}

type RegistrationLookup interface {
	UserEvents(ctx context.Context, userID int64) ([]events.RegisteredEvent, error)
}

type ConfirmationSender interface {
	SendRegistrationConfirmation(ctx context.Context, msg email.RegistrationConfirmation) error
}

// RegistrationConfirmationWorker emails the attendee. Registrations that no
// longer exist by the time the job runs are dropped without retry.
type RegistrationConfirmationWorker struct {
	river.WorkerDefaults[RegistrationConfirmationArgs]
	Users         UserLookup
	Registrations RegistrationLookup
	Mailer        ConfirmationSender
	Logger        zerolog.Logger
}

func (w RegistrationConfirmationWorker) Work(ctx context.Context, job *river.Job[RegistrationConfirmationArgs]) error {
	if w.Users == nil || w.Registrations == nil || w.Mailer == nil {
		return errors.New("registration confirmation worker not configured")
	}
	if job == nil {
		return errors.New("registration confirmation job missing")
	}
	args := job.Args

	user, err := w.Users.Get(ctx, args.UserID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return river.JobCancel(err)
		}
		return fmt.Errorf("load user %d: %w", args.UserID, err)
	}

	registered, err := w.Registrations.UserEvents(ctx, args.UserID)
	if err != nil {
		return fmt.Errorf("load registrations for user %d: %w", args.UserID, err)
	}
	var event *events.Event
	for i := range registered {
		if registered[i].Event.ID == args.EventID {
			event = &registered[i].Event
			break
		}
	}
	if event == nil {
		w.Logger.Info().Int64("user_id", args.UserID).Int64("event_id", args.EventID).
			Msg("registration gone before confirmation was sent")
		return river.JobCancel(events.ErrRegistrationNotFound)
	}

	return w.Mailer.SendRegistrationConfirmation(ctx, email.RegistrationConfirmation{
		To:         user.Email,
		Name:       user.Name,
		EventTitle: event.Title,
		Date:       event.Date.Format(events.DateLayout),
		Time:       event.Time.String(),
		Location:   event.Location,
	})
}

// WorkerDeps are the services the workers call into.
type WorkerDeps struct {
	Sessions      SessionPurger
	Users         UserLookup
	Registrations RegistrationLookup
	Mailer        ConfirmationSender
	Logger        zerolog.Logger
}

func NewWorkers(deps WorkerDeps) *river.Workers {
	logger := deps.Logger.With().Str("component", "jobs").Logger()
	workers := river.NewWorkers()
	river.AddWorker(workers, SessionCleanupWorker{Sessions: deps.Sessions, Logger: logger})
	river.AddWorker(workers, RegistrationConfirmationWorker{
		Users:         deps.Users,
		Registrations: deps.Registrations,
		Mailer:        deps.Mailer,
		Logger:        logger,
	})
	return workers
}
