// Package memory is a process-local store used for tests and local
// development. A transaction holds the store lock until it ends, so
// transactions are fully serialized.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/campus-events/server/internal/auth"
	"github.com/campus-events/server/internal/domain/events"
	"github.com/campus-events/server/internal/domain/users"
	"github.com/campus-events/server/internal/storage"
)

var _ storage.Repository = (*Store)(nil)

var errTxClosed = errors.New("memory: transaction already closed")

type Store struct {
	mu   sync.Mutex
	data *dataset
	now  func() time.Time
}

type regKey struct {
	userID  int64
	eventID int64
}

type regRow struct {
	at  time.Time
	seq int64
}

type dataset struct {
	users       map[int64]users.User
	events      map[int64]events.Event
	regs        map[regKey]regRow
	sessions    map[string]auth.SessionRecord
	nextUserID  int64
	nextEventID int64
	regSeq      int64
}

func newDataset() *dataset {
	return &dataset{
		users:    map[int64]users.User{},
		events:   map[int64]events.Event{},
		regs:     map[regKey]regRow{},
		sessions: map[string]auth.SessionRecord{},
	}
}

func (d *dataset) clone() *dataset {
	out := &dataset{
		users:       make(map[int64]users.User, len(d.users)),
		events:      make(map[int64]events.Event, len(d.events)),
		regs:        make(map[regKey]regRow, len(d.regs)),
		sessions:    make(map[string]auth.SessionRecord, len(d.sessions)),
		nextUserID:  d.nextUserID,
		nextEventID: d.nextEventID,
		regSeq:      d.regSeq,
	}
	for k, v := range d.users {
		out.users[k] = v
	}
	for k, v := range d.events {
		out.events[k] = v
	}
	for k, v := range d.regs {
		out.regs[k] = v
	}
	for k, v := range d.sessions {
		out.sessions[k] = v
	}
	return out
}

func New() *Store {
	return &Store{data: newDataset(), now: time.Now}
}

// WithClock replaces the time source used for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Users() users.Repository {
	return &userRepository{store: s}
}

func (s *Store) Events() events.Repository {
	return &eventRepository{store: s}
}

func (s *Store) Sessions() auth.SessionStore {
	return &sessionRepository{store: s}
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// DeleteUser removes an account with the same cascades as the SQL schema.
func (s *Store) DeleteUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.users, id)
	for key := range s.data.regs {
		if key.userID == id {
			delete(s.data.regs, key)
		}
	}
	for hash, record := range s.data.sessions {
		if record.UserID == id {
			delete(s.data.sessions, hash)
		}
	}
	for eventID, event := range s.data.events {
		if event.CreatedBy != nil && *event.CreatedBy == id {
			event.CreatedBy = nil
			s.data.events[eventID] = event
		}
	}
}

func (s *Store) locked(fn func(d *dataset) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// memTx owns the store lock from BeginTx until Commit or Rollback.
type memTx struct {
	store    *Store
	snapshot *dataset
	done     bool
}

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return errTxClosed
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.data = t.snapshot
	t.store.mu.Unlock()
	return nil
}

// nestedTx is handed out when BeginTx is called inside a transaction; the
// outer transaction decides the outcome.
type nestedTx struct{}

func (nestedTx) Commit(context.Context) error   { return nil }
func (nestedTx) Rollback(context.Context) error { return nil }
