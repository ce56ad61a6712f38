package events

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Only a pending event can be reviewed; no operation moves an event into or
// out of cancelled.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && (next == StatusApproved || next == StatusRejected)
}

type Category string

const (
	CategoryMeeting    Category = "meeting"
	CategoryWorkshop   Category = "workshop"
	CategoryActivity   Category = "activity"
	CategoryConference Category = "conference"
	CategorySeminar    Category = "seminar"
	CategoryOther      Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryMeeting,
	CategoryWorkshop,
	CategoryActivity,
	CategoryConference,
	CategorySeminar,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, candidate := range Categories {
		if c == candidate {
			return true
		}
	}
	return false
}

// DateLayout is the wire and storage format of an event date.
const DateLayout = "2006-01-02"

// TimeOfDay is a wall-clock start time without a date or zone.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, value); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q", value)
}

// TimeOfDayFromMicros converts microseconds since midnight, as stored in a
// Postgres TIME column.
func TimeOfDayFromMicros(us int64) TimeOfDay {
	secs := us / int64(time.Second/time.Microsecond)
	return TimeOfDay{
		Hour:   int(secs / 3600),
		Minute: int(secs % 3600 / 60),
		Second: int(secs % 60),
	}
}

func (t TimeOfDay) Micros() int64 {
	return int64(t.Hour*3600+t.Minute*60+t.Second) * int64(time.Second/time.Microsecond)
}

// String renders HH:MM, or HH:MM:SS when seconds are set.
func (t TimeOfDay) String() string {
	if t.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) Compare(other TimeOfDay) int {
	a, b := t.Micros(), other.Micros()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ParseDate parses a civil date in DateLayout, returned at UTC midnight.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(value))
}

type Event struct {
	ID          int64
	Title       string
	Description string
	Date        time.Time
	Time        TimeOfDay
	Location    string
	Category    Category
	Organizer   string
	Capacity    int
	Status      Status
	CreatedBy   *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Detail is an approved event together with its live registration count.
type Detail struct {
	Event
	RegisteredCount int
}

type Registration struct {
	UserID       int64
	EventID      int64
	RegisteredAt time.Time
}

type Attendee struct {
	UserID       int64
	Name         string
	Email        string
	RegisteredAt time.Time
}

// RegisteredEvent is an event seen through one user's registration.
type RegisteredEvent struct {
	Event
	RegisteredAt time.Time
}

type CreateParams struct {
	Title       string
	Description string
	Date        time.Time
	Time        TimeOfDay
	Location    string
	Category    Category
	Organizer   string
	Capacity    int
	Status      Status
	CreatedBy   *int64
}

// UpdateParams carries the full set of editable fields after a patch has
// been merged and validated.
type UpdateParams struct {
	Title       string
	Description string
	Date        time.Time
	Time        TimeOfDay
	Location    string
	Category    Category
	Capacity    int
}

// SearchFilters narrows the approved listing. Empty fields match everything.
type SearchFilters struct {
	Query    string
	Category Category
}
