package handlers

import (
	"net/http"
	"strconv"

	"github.com/campus-events/server/internal/audit"
	"github.com/campus-events/server/internal/auth"
	"github.com/campus-events/server/internal/domain/events"
)

type EventsHandler struct {
	Service *events.Service
	Guard   *auth.Guard
	Audit   *audit.Logger
	Env     string
}

func NewEventsHandler(service *events.Service, guard *auth.Guard, auditLogger *audit.Logger, env string) *EventsHandler {
	return &EventsHandler{Service: service, Guard: guard, Audit: auditLogger, Env: env}
}

type createEventResponse struct {
	Message string `json:"message"`
	EventID int64  `json:"event_id"`
}

type eventMessageResponse struct {
	Message string        `json:"message"`
	Event   eventResponse `json:"event"`
}

// List handles GET /api/events/all/.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListApproved(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toEventsResponse(list))
}

// Search handles GET /api/events/search/?q=&category=.
func (h *EventsHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	list, err := h.Service.Search(r.Context(), query.Get("q"), query.Get("category"))
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toEventsResponse(list))
}

// Get handles GET /api/events/{id}/ for approved events.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	detail, err := h.Service.Detail(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, eventDetailResponse{
		eventResponse:   toEventResponse(detail.Event),
		RegisteredCount: detail.RegisteredCount,
	})
}

// Create handles POST /api/events/create/.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, h.Guard, auth.StaffOrAdmin)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	var input events.EventInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	event, err := h.Service.Create(r.Context(), principal, input)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, principal, "event.create", "event", strconv.FormatInt(event.ID, 10), audit.StatusSuccess,
		map[string]string{"title": event.Title})
	writeJSON(w, http.StatusCreated, createEventResponse{Message: "Event created successfully", EventID: event.ID})
}

// Edit handles POST /api/events/{id}/edit/.
func (h *EventsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	principal, err := requireRole(r, h.Guard, auth.StaffOrAdmin)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	var patch events.EventPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	event, err := h.Service.Edit(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, principal, "event.edit", "event", strconv.FormatInt(id, 10), audit.StatusSuccess, nil)
	writeJSON(w, http.StatusOK, eventMessageResponse{Message: "Event updated successfully", Event: toEventResponse(event)})
}

// Delete handles POST /api/events/{id}/delete/.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.Service.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	h.Audit.LogFromRequest(r, principal, "event.delete", "event", strconv.FormatInt(id, 10), audit.StatusSuccess, nil)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Event deleted successfully"})
}
