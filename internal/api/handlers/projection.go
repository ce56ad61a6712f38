package handlers

import (
	"time"

	"github.com/campus-events/server/internal/domain/events"
)

type eventResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Location    string    `json:"location"`
	Category    string    `json:"category"`
	Organizer   string    `json:"organizer"`
	Capacity    int       `json:"capacity"`
	Status      string    `json:"status"`
	CreatedBy   *int64    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type eventDetailResponse struct {
	eventResponse
	RegisteredCount int `json:"registered_count"`
}

type userEventResponse struct {
	eventResponse
	RegisteredAt time.Time `json:"registered_at"`
}

type attendeeResponse struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

type eventsResponse struct {
	Events []eventResponse `json:"events"`
}

func toEventResponse(e events.Event) eventResponse {
	return eventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Date:        e.Date.Format(events.DateLayout),
		Time:        e.Time.String(),
		Location:    e.Location,
		Category:    string(e.Category),
		Organizer:   e.Organizer,
		Capacity:    e.Capacity,
		Status:      string(e.Status),
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
}

func toEventsResponse(list []events.Event) eventsResponse {
	out := make([]eventResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toEventResponse(e))
	}
	return eventsResponse{Events: out}
}
