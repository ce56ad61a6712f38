package problem

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

const contentType = "application/json"

// GenericServerError is sent for 5xx responses outside development and test.
const GenericServerError = "Internal server error"

// Body is the JSON error envelope shared by every endpoint.
type Body struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type Option func(*Body)

// WithField names the request field a validation message refers to.
func WithField(field string) Option {
	return func(b *Body) {
		b.Field = field
	}
}

// Write logs err through the request logger and sends {"error": message}.
// Server errors hide their message unless env is development or test, where
// the underlying error text is returned instead.
func Write(w http.ResponseWriter, r *http.Request, status int, message string, err error, env string, opts ...Option) {
	body := Body{Error: message}
	for _, opt := range opts {
		opt(&body)
	}

	if status >= 500 {
		if err != nil && (env == "development" || env == "test") {
			body.Error = err.Error()
		} else {
			body.Error = GenericServerError
		}
	}
	if body.Error == "" {
		body.Error = http.StatusText(status)
	}

	if r != nil && err != nil {
		logger := zerolog.Ctx(r.Context())
		var event *zerolog.Event
		if status >= 500 {
			event = logger.Error()
		} else {
			event = logger.Warn()
		}
		event.Err(err).
			Int("status", status).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(message)
	}

	WriteBody(w, status, body)
}

func WriteBody(w http.ResponseWriter, status int, body Body) {
	payload, err := json.Marshal(body)
	if err != nil {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"` + GenericServerError + `"}`))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
