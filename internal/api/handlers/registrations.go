package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/campus-events/server/internal/auth"
	"github.com/campus-events/server/internal/domain/events"
	"github.com/campus-events/server/internal/metrics"
)

type RegistrationsHandler struct {
	Service *events.Service
	Guard   *auth.Guard
	Env     string
}

func NewRegistrationsHandler(service *events.Service, guard *auth.Guard, env string) *RegistrationsHandler {
	return &RegistrationsHandler{Service: service, Guard: guard, Env: env}
}

type registrationResponse struct {
	Message      string    `json:"message"`
	EventID      int64     `json:"event_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

type userEventsResponse struct {
	Events []userEventResponse `json:"events"`
}

// Register handles POST /api/events/{id}/register/.
func (h *RegistrationsHandler) Register(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, h.Guard, auth.Anyone)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	registration, err := h.Service.Register(r.Context(), principal.ID, id)
	metrics.RegistrationsTotal.WithLabelValues(registrationOutcome(err)).Inc()
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusCreated, registrationResponse{
		Message:      "Registered for event successfully",
		EventID:      registration.EventID,
		RegisteredAt: registration.RegisteredAt.UTC(),
	})
}

// Cancel handles POST /api/events/{id}/cancel/. Only the caller's own
// registration is removed.
func (h *RegistrationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, h.Guard, auth.Anyone)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	if err := h.Service.CancelRegistration(r.Context(), principal.ID, id); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Registration cancelled"})
}

// UserEvents handles GET /api/user/events/.
func (h *RegistrationsHandler) UserEvents(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, h.Guard, auth.Anyone)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	list, err := h.Service.UserEvents(r.Context(), principal.ID)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	out := make([]userEventResponse, 0, len(list))
	for _, e := range list {
		out = append(out, userEventResponse{eventResponse: toEventResponse(e.Event), RegisteredAt: e.RegisteredAt.UTC()})
	}
	writeJSON(w, http.StatusOK, userEventsResponse{Events: out})
}

func registrationOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, events.ErrDuplicateRegistration):
		return "duplicate"
	case errors.Is(err, events.ErrCapacityExceeded):
		return "full"
	case errors.Is(err, events.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
