package jobs

import (
	"context"
	"fmt"

	"github.com/campus-events/server/internal/domain/events"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// Inserter is the part of the River client the notifier needs.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// RegistrationNotifier enqueues a confirmation email for each new registration.
type RegistrationNotifier struct {
	client Inserter
}

func NewRegistrationNotifier(client Inserter) *RegistrationNotifier {
	return &RegistrationNotifier{client: client}
}

func (n *RegistrationNotifier) RegistrationCreated(ctx context.Context, registration events.Registration) error {
	_, err := n.client.Insert(ctx, RegistrationConfirmationArgs{
		UserID:  registration.UserID,
		EventID: registration.EventID,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueue registration confirmation: %w", err)
	}
	return nil
}
