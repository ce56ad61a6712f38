package problem

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func decode(t *testing.T, res *httptest.ResponseRecorder) Body {
	t.Helper()
	var body Body
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestWrite_ClientErrorKeepsMessage(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/events/create/", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusBadRequest, "title is required", errors.New("title is required"), "production", WithField("title"))

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if got := res.Result().Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json, got %s", got)
	}
	body := decode(t, res)
	if body.Error != "title is required" || body.Field != "title" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestWrite_ProdHidesServerError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/events/all/", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusInternalServerError, "list events", errors.New("pq: connection refused"), "production")

	body := decode(t, res)
	if body.Error != GenericServerError {
		t.Fatalf("expected generic message, got %q", body.Error)
	}
}

func TestWrite_DevShowsServerError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/events/all/", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusInternalServerError, "list events", errors.New("pq: connection refused"), "development")

	body := decode(t, res)
	if body.Error != "pq: connection refused" {
		t.Fatalf("expected underlying error, got %q", body.Error)
	}
}

func TestWrite_EmptyMessageFallsBackToStatusText(t *testing.T) {
	res := httptest.NewRecorder()
	Write(res, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusNotFound, "", nil, "test")

	if body := decode(t, res); body.Error != "Not Found" {
		t.Fatalf("expected status text, got %q", body.Error)
	}
}

func TestWrite_LogLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusForbidden, `"level":"warn"`},
		{http.StatusServiceUnavailable, `"level":"error"`},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)
		req := httptest.NewRequest(http.MethodPost, "/api/admin/events/1/approve/", nil)
		req = req.WithContext(logger.WithContext(req.Context()))

		Write(httptest.NewRecorder(), req, tt.status, "failed", errors.New("cause"), "test")

		if !strings.Contains(buf.String(), tt.level) {
			t.Fatalf("status %d: expected %s in %s", tt.status, tt.level, buf.String())
		}
	}
}

func TestWrite_NoErrorNoLog(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logger.WithContext(req.Context()))

	Write(httptest.NewRecorder(), req, http.StatusNotFound, "Event not found", nil, "test")

	if buf.Len() != 0 {
		t.Fatalf("expected no log output, got %s", buf.String())
	}
}
