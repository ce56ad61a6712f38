package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/campus-events/server/internal/audit"
	"github.com/campus-events/server/internal/auth"
	"github.com/campus-events/server/internal/domain/events"
	"github.com/campus-events/server/internal/metrics"
)

// AdminHandler serves the review queue and attendee lists.
type AdminHandler struct {
	Service *events.Service
	Guard   *auth.Guard
	Audit   *audit.Logger
	Env     string
}

func NewAdminHandler(service *events.Service, guard *auth.Guard, auditLogger *audit.Logger, env string) *AdminHandler {
	return &AdminHandler{Service: service, Guard: guard, Audit: auditLogger, Env: env}
}

type reviewResponse struct {
	Message string `json:"message"`
	EventID int64  `json:"event_id"`
	Status  string `json:"status"`
}

type attendeesResponse struct {
	Attendees []attendeeResponse `json:"attendees"`
	Total     int                `json:"total"`
}

// Pending handles GET /api/admin/events/pending/.
func (h *AdminHandler) Pending(w http.ResponseWriter, r *http.Request) {
	if _, err := requireRole(r, h.Guard, auth.AdminOnly); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	list, err := h.Service.ListPending(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toEventsResponse(list))
}

// Approve handles POST /api/admin/events/{id}/approve/.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "event.approve", "Event approved", h.Service.Approve)
}

// Reject handles POST /api/admin/events/{id}/reject/.
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "event.reject", "Event rejected", h.Service.Reject)
}

func (h *AdminHandler) review(w http.ResponseWriter, r *http.Request, action, message string, decide func(context.Context, int64) (events.Event, error)) {
	principal, err := requireRole(r, h.Guard, auth.AdminOnly)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	event, err := decide(r.Context(), id)
	if err != nil {
		h.Audit.LogFromRequest(r, principal, action, "event", strconv.FormatInt(id, 10), audit.StatusFailure,
			map[string]string{"error": err.Error()})
		writeError(w, r, err, h.Env)
		return
	}

	metrics.EventTransitionsTotal.WithLabelValues(string(event.Status)).Inc()
	h.Audit.LogFromRequest(r, principal, action, "event", strconv.FormatInt(id, 10), audit.StatusSuccess, nil)
	writeJSON(w, http.StatusOK, reviewResponse{Message: message, EventID: event.ID, Status: string(event.Status)})
}

// Attendees handles GET /api/events/{id}/attendees/.
func (h *AdminHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	if _, err := requireRole(r, h.Guard, auth.AdminOnly); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	list, err := h.Service.Attendees(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	out := make([]attendeeResponse, 0, len(list))
	for _, a := range list {
		out = append(out, attendeeResponse{Name: a.Name, Email: a.Email, RegisteredAt: a.RegisteredAt.UTC()})
	}
	writeJSON(w, http.StatusOK, attendeesResponse{Attendees: out, Total: len(out)})
}
