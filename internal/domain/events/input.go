package events

import (
	"strconv"
	"strings"
	"time"

	"github.com/campus-events/server/internal/sanitize"
	"github.com/campus-events/server/internal/validation"
)

// EventInput is the create payload. Capacity is a pointer so a missing value
// can be told apart from zero.
type EventInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
	Date        string `json:"date" validate:"required"`
	Time        string `json:"time" validate:"required"`
	Location    string `json:"location" validate:"required,max=200"`
	Category    string `json:"category" validate:"required,oneof=meeting workshop activity conference seminar other"`
	Organizer   string `json:"organizer" validate:"max=150"`
	Capacity    *int   `json:"capacity" validate:"required,gt=0"`
}

// EventPatch is the edit payload; nil fields keep their current value.
type EventPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	Time        *string `json:"time"`
	Location    *string `json:"location"`
	Category    *string `json:"category"`
	Capacity    *int    `json:"capacity"`
}

// Edit rules; they match the EventInput tags. Organizer is not editable and
// allows as much as a user name, since it defaults to the creator's name.
const (
	titleRules    = "required,max=200"
	locationRules = "required,max=200"
	categoryRules = "required,oneof=meeting workshop activity conference seminar other"
	capacityRules = "gt=0"
)

func (in EventInput) normalize() (CreateParams, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	in.Location = strings.TrimSpace(in.Location)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Organizer = strings.TrimSpace(in.Organizer)

	if err := validation.Struct(in); err != nil {
		return CreateParams{}, err
	}

	date, err := parseDate(in.Date)
	if err != nil {
		return CreateParams{}, err
	}
	clock, err := parseTime(in.Time)
	if err != nil {
		return CreateParams{}, err
	}
	for _, f := range []struct{ name, value string }{
		{"title", in.Title},
		{"location", in.Location},
		{"organizer", in.Organizer},
	} {
		if err := plainText(f.name, f.value); err != nil {
			return CreateParams{}, err
		}
	}
	description, err := cleanDescription(in.Description)
	if err != nil {
		return CreateParams{}, err
	}

	return CreateParams{
		Title:       in.Title,
		Description: description,
		Date:        date,
		Time:        clock,
		Location:    in.Location,
		Category:    Category(in.Category),
		Organizer:   in.Organizer,
		Capacity:    *in.Capacity,
	}, nil
}

// apply overlays the supplied patch fields on current. Only supplied fields
// are validated; everything else is carried over as stored.
func (p EventPatch) apply(current Event) (UpdateParams, error) {
	params := UpdateParams{
		Title:       current.Title,
		Description: current.Description,
		Date:        current.Date,
		Time:        current.Time,
		Location:    current.Location,
		Category:    current.Category,
		Capacity:    current.Capacity,
	}

	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if err := validation.Var("title", title, titleRules); err != nil {
			return UpdateParams{}, err
		}
		if err := plainText("title", title); err != nil {
			return UpdateParams{}, err
		}
		params.Title = title
	}
	if p.Description != nil {
		description, err := cleanDescription(strings.TrimSpace(*p.Description))
		if err != nil {
			return UpdateParams{}, err
		}
		params.Description = description
	}
	if p.Date != nil {
		date, err := parseDate(strings.TrimSpace(*p.Date))
		if err != nil {
			return UpdateParams{}, err
		}
		params.Date = date
	}
	if p.Time != nil {
		clock, err := parseTime(strings.TrimSpace(*p.Time))
		if err != nil {
			return UpdateParams{}, err
		}
		params.Time = clock
	}
	if p.Location != nil {
		location := strings.TrimSpace(*p.Location)
		if err := validation.Var("location", location, locationRules); err != nil {
			return UpdateParams{}, err
		}
		if err := plainText("location", location); err != nil {
			return UpdateParams{}, err
		}
		params.Location = location
	}
	if p.Category != nil {
		category := strings.ToLower(strings.TrimSpace(*p.Category))
		if err := validation.Var("category", category, categoryRules); err != nil {
			return UpdateParams{}, err
		}
		params.Category = Category(category)
	}
	if p.Capacity != nil {
		if err := validation.Var("capacity", *p.Capacity, capacityRules); err != nil {
			return UpdateParams{}, err
		}
		params.Capacity = *p.Capacity
	}
	return params, nil
}

// plainText rejects values that carry HTML markup or entities. Plain text
// fields are stored exactly as sent.
func plainText(field, value string) error {
	if !sanitize.IsPlainText(value) {
		return validation.Invalid(field, "must not contain HTML markup")
	}
	return nil
}

// cleanDescription keeps safe formatting. A markup-only description
// sanitizes to nothing and counts as missing.
func cleanDescription(value string) (string, error) {
	if value == "" {
		return "", validation.Missing("description")
	}
	cleaned := sanitize.HTML(value)
	if cleaned == "" {
		return "", validation.Missing("description")
	}
	return cleaned, nil
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, validation.Missing("date")
	}
	date, err := ParseDate(value)
	if err != nil {
		return time.Time{}, validation.Invalid("date", "must be a date in YYYY-MM-DD format")
	}
	return date, nil
}

func parseTime(value string) (TimeOfDay, error) {
	if value == "" {
		return TimeOfDay{}, validation.Missing("time")
	}
	clock, err := ParseTimeOfDay(value)
	if err != nil {
		return TimeOfDay{}, validation.Invalid("time", "must be a time in HH:MM format")
	}
	return clock, nil
}

// ParseID parses a positive event id from a path segment.
func ParseID(value string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
