package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/campus-events/server/internal/api/problem"
	"github.com/campus-events/server/internal/auth"
	"github.com/campus-events/server/internal/domain/events"
	"github.com/campus-events/server/internal/domain/users"
	"github.com/campus-events/server/internal/validation"
)

// errBadRequest carries a client-facing message for malformed requests.
type errBadRequest struct {
	message string
	cause   error
}

func (e errBadRequest) Error() string { return e.message }
func (e errBadRequest) Unwrap() error { return e.cause }

// errInvalidID is reported as 404 so non-numeric ids look like missing rows.
var errInvalidID = errors.New("invalid id")

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a single JSON object into dst. An empty body decodes to
// the zero value so required-field validation reports what is missing.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBadRequest{message: "Request body too large", cause: err}
		}
		return errBadRequest{message: "Invalid JSON body", cause: err}
	}
	if dec.More() {
		return errBadRequest{message: "Invalid JSON body", cause: errors.New("trailing data after JSON object")}
	}
	return nil
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return r.PathValue(key)
}

func pathID(r *http.Request) (int64, error) {
	id, ok := events.ParseID(pathParam(r, "id"))
	if !ok {
		return 0, errInvalidID
	}
	return id, nil
}

// writeError maps domain errors onto statuses. Messages of known errors are
// client-safe; anything else becomes a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var validationErr validation.Error
	var badRequest errBadRequest

	switch {
	case errors.As(err, &validationErr):
		problem.Write(w, r, http.StatusBadRequest, validationErr.Message, err, env, problem.WithField(validationErr.Field))
	case errors.As(err, &badRequest):
		problem.Write(w, r, http.StatusBadRequest, badRequest.message, err, env)
	case errors.Is(err, auth.ErrUnauthenticated):
		problem.Write(w, r, http.StatusUnauthorized, auth.ErrUnauthenticated.Error(), err, env)
	case errors.Is(err, users.ErrInvalidCredentials):
		problem.Write(w, r, http.StatusUnauthorized, users.ErrInvalidCredentials.Error(), err, env)
	case errors.Is(err, auth.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, auth.ErrForbidden.Error(), err, env)
	case errors.Is(err, errInvalidID), errors.Is(err, events.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, events.ErrNotFound.Error(), err, env)
	case errors.Is(err, events.ErrRegistrationNotFound):
		problem.Write(w, r, http.StatusNotFound, events.ErrRegistrationNotFound.Error(), err, env)
	case errors.Is(err, auth.ErrUserNotFound):
		problem.Write(w, r, http.StatusNotFound, auth.ErrUserNotFound.Error(), err, env)
	case errors.Is(err, users.ErrEmailTaken):
		problem.Write(w, r, http.StatusBadRequest, users.ErrEmailTaken.Error(), err, env)
	case errors.Is(err, events.ErrDuplicateRegistration):
		problem.Write(w, r, http.StatusBadRequest, events.ErrDuplicateRegistration.Error(), err, env)
	case errors.Is(err, events.ErrCapacityExceeded):
		problem.Write(w, r, http.StatusBadRequest, events.ErrCapacityExceeded.Error(), err, env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, "Server error", err, env)
	}
}

// requireRole runs the guard against the request's session.
func requireRole(r *http.Request, guard *auth.Guard, allowed auth.RoleSet) (auth.Principal, error) {
	return guard.RequireRole(r.Context(), auth.SessionFromContext(r.Context()), allowed)
}
