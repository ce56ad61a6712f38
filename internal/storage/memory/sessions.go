package memory

import (
	"context"
	"time"

	"github.com/campus-events/server/internal/auth"
)

var _ auth.SessionStore = (*sessionRepository)(nil)

type sessionRepository struct {
	store *Store
}

func (r *sessionRepository) Create(_ context.Context, record auth.SessionRecord) error {
	return r.store.locked(func(d *dataset) error {
		d.sessions[record.TokenHash] = record
		return nil
	})
}

func (r *sessionRepository) Lookup(_ context.Context, tokenHash string) (auth.SessionRecord, error) {
	var found auth.SessionRecord
	err := r.store.locked(func(d *dataset) error {
		record, ok := d.sessions[tokenHash]
		if !ok {
			return auth.ErrSessionNotFound
		}
		found = record
		return nil
	})
	return found, err
}

func (r *sessionRepository) Delete(_ context.Context, tokenHash string) error {
	return r.store.locked(func(d *dataset) error {
		if _, ok := d.sessions[tokenHash]; !ok {
			return auth.ErrSessionNotFound
		}
		delete(d.sessions, tokenHash)
		return nil
	})
}

func (r *sessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var purged int64
	err := r.store.locked(func(d *dataset) error {
		for hash, record := range d.sessions {
			if record.Expired(now) {
				delete(d.sessions, hash)
				purged++
			}
		}
		return nil
	})
	return purged, err
}
