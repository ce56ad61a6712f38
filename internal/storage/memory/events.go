package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/campus-events/server/internal/domain/events"
)

var _ events.Repository = (*eventRepository)(nil)

type eventRepository struct {
	store *Store
	tx    *memTx
}

// do runs fn against the dataset, taking the store lock unless this
// repository is bound to a transaction that already holds it.
func (r *eventRepository) do(fn func(d *dataset) error) error {
	if r.tx != nil {
		if r.tx.done {
			return errTxClosed
		}
		return fn(r.store.data)
	}
	return r.store.locked(fn)
}

func (r *eventRepository) Create(_ context.Context, params events.CreateParams) (events.Event, error) {
	var created events.Event
	err := r.do(func(d *dataset) error {
		d.nextEventID++
		now := r.store.timestamp()
		var createdBy *int64
		if params.CreatedBy != nil {
			id := *params.CreatedBy
			createdBy = &id
		}
		created = events.Event{
			ID:          d.nextEventID,
			Title:       params.Title,
			Description: params.Description,
			Date:        params.Date,
			Time:        params.Time,
			Location:    params.Location,
			Category:    params.Category,
			Organizer:   params.Organizer,
			Capacity:    params.Capacity,
			Status:      params.Status,
			CreatedBy:   createdBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		d.events[created.ID] = created
		return nil
	})
	return created, err
}

func (r *eventRepository) GetByID(_ context.Context, id int64) (events.Event, error) {
	var found events.Event
	err := r.do(func(d *dataset) error {
		event, ok := d.events[id]
		if !ok {
			return events.ErrNotFound
		}
		found = event
		return nil
	})
	return found, err
}

func (r *eventRepository) Update(_ context.Context, id int64, params events.UpdateParams) (events.Event, error) {
	var updated events.Event
	err := r.do(func(d *dataset) error {
		event, ok := d.events[id]
		if !ok {
			return events.ErrNotFound
		}
		event.Title = params.Title
		event.Description = params.Description
		event.Date = params.Date
		event.Time = params.Time
		event.Location = params.Location
		event.Category = params.Category
		event.Capacity = params.Capacity
		event.UpdatedAt = r.store.timestamp()
		d.events[id] = event
		updated = event
		return nil
	})
	return updated, err
}

func (r *eventRepository) Delete(_ context.Context, id int64) error {
	return r.do(func(d *dataset) error {
		if _, ok := d.events[id]; !ok {
			return events.ErrNotFound
		}
		delete(d.events, id)
		for key := range d.regs {
			if key.eventID == id {
				delete(d.regs, key)
			}
		}
		return nil
	})
}

func (r *eventRepository) TransitionStatus(_ context.Context, id int64, from, to events.Status) (events.Event, error) {
	var updated events.Event
	err := r.do(func(d *dataset) error {
		event, ok := d.events[id]
		if !ok || event.Status != from {
			return events.ErrNotFound
		}
		event.Status = to
		event.UpdatedAt = r.store.timestamp()
		d.events[id] = event
		updated = event
		return nil
	})
	return updated, err
}

func (r *eventRepository) ListApproved(_ context.Context, filters events.SearchFilters) ([]events.Event, error) {
	out := []events.Event{}
	query := strings.ToLower(filters.Query)
	err := r.do(func(d *dataset) error {
		for _, event := range d.events {
			if event.Status != events.StatusApproved {
				continue
			}
			if filters.Category != "" && event.Category != filters.Category {
				continue
			}
			if query != "" &&
				!strings.Contains(strings.ToLower(event.Title), query) &&
				!strings.Contains(strings.ToLower(event.Location), query) {
				continue
			}
			out = append(out, event)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if c := a.Time.Compare(b.Time); c != 0 {
			return c > 0
		}
		return a.ID > b.ID
	})
	return out, err
}

func (r *eventRepository) ListPending(_ context.Context) ([]events.Event, error) {
	out := []events.Event{}
	err := r.do(func(d *dataset) error {
		for _, event := range d.events {
			if event.Status == events.StatusPending {
				out = append(out, event)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (r *eventRepository) CountRegistrations(_ context.Context, eventID int64) (int, error) {
	count := 0
	err := r.do(func(d *dataset) error {
		for key := range d.regs {
			if key.eventID == eventID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *eventRepository) ListAttendees(_ context.Context, eventID int64) ([]events.Attendee, error) {
	type row struct {
		attendee events.Attendee
		seq      int64
	}
	var rows []row
	err := r.do(func(d *dataset) error {
		for key, reg := range d.regs {
			if key.eventID != eventID {
				continue
			}
			user, ok := d.users[key.userID]
			if !ok {
				continue
			}
			rows = append(rows, row{
				attendee: events.Attendee{
					UserID:       user.ID,
					Name:         user.Name,
					Email:        user.Email,
					RegisteredAt: reg.at,
				},
				seq: reg.seq,
			})
		}
		return nil
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]events.Attendee, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.attendee)
	}
	return out, err
}

func (r *eventRepository) ListUserEvents(_ context.Context, userID int64) ([]events.RegisteredEvent, error) {
	type row struct {
		event events.RegisteredEvent
		seq   int64
	}
	var rows []row
	err := r.do(func(d *dataset) error {
		for key, reg := range d.regs {
			if key.userID != userID {
				continue
			}
			event, ok := d.events[key.eventID]
			if !ok {
				continue
			}
			rows = append(rows, row{
				event: events.RegisteredEvent{Event: event, RegisteredAt: reg.at},
				seq:   reg.seq,
			})
		}
		return nil
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	out := make([]events.RegisteredEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.event)
	}
	return out, err
}

func (r *eventRepository) DeleteRegistration(_ context.Context, userID, eventID int64) error {
	return r.do(func(d *dataset) error {
		key := regKey{userID: userID, eventID: eventID}
		if _, ok := d.regs[key]; !ok {
			return events.ErrRegistrationNotFound
		}
		delete(d.regs, key)
		return nil
	})
}

func (r *eventRepository) BeginTx(_ context.Context) (events.Repository, events.TxCommitter, error) {
	if r.tx != nil {
		return r, nestedTx{}, nil
	}
	r.store.mu.Lock()
	tx := &memTx{store: r.store, snapshot: r.store.data.clone()}
	return &eventRepository{store: r.store, tx: tx}, tx, nil
}

// LockEvent relies on the transaction already holding the store lock.
func (r *eventRepository) LockEvent(ctx context.Context, id int64) (events.Event, error) {
	return r.GetByID(ctx, id)
}

func (r *eventRepository) RegistrationExists(_ context.Context, userID, eventID int64) (bool, error) {
	exists := false
	err := r.do(func(d *dataset) error {
		_, exists = d.regs[regKey{userID: userID, eventID: eventID}]
		return nil
	})
	return exists, err
}

func (r *eventRepository) CreateRegistration(_ context.Context, userID, eventID int64) (events.Registration, error) {
	var created events.Registration
	err := r.do(func(d *dataset) error {
		key := regKey{userID: userID, eventID: eventID}
		if _, ok := d.regs[key]; ok {
			return events.ErrDuplicateRegistration
		}
		if _, ok := d.events[eventID]; !ok {
			return events.ErrNotFound
		}
		d.regSeq++
		now := r.store.timestamp()
		d.regs[key] = regRow{at: now, seq: d.regSeq}
		created = events.Registration{UserID: userID, EventID: eventID, RegisteredAt: now}
		return nil
	})
	return created, err
}
