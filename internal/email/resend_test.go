package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/campus-events/server/internal/config"
	"github.com/campus-events/server/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var confirmation = RegistrationConfirmation{
	To:         "ada@campus.test",
	Name:       "Ada",
	EventTitle: "Career Night",
	Date:       "2026-11-20",
	Time:       "18:30",
	Location:   "Main Hall",
}

func enabledConfig() config.EmailConfig {
	return config.EmailConfig{Enabled: true, From: "events@campus.test", ResendAPIKey: "test-api-key"}
}

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewService(enabledConfig(), zerolog.Nop())
	require.NoError(t, err)

	client := resend.NewClient("test-api-key")
	baseURL, err := url.Parse(server.URL)
	require.NoError(t, err)
	client.BaseURL = baseURL
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return svc.WithClient(client)
}

func sentCount(result string) float64 {
	return testutil.ToFloat64(metrics.EmailsSentTotal.WithLabelValues(templateRegistrationConfirmation, result))
}

func TestSendRegistrationConfirmation(t *testing.T) {
	var got resend.SendEmailRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "email-123"})
	})

	before := sentCount("sent")
	require.NoError(t, svc.SendRegistrationConfirmation(context.Background(), confirmation))

	assert.Equal(t, "events@campus.test", got.From)
	assert.Equal(t, []string{"ada@campus.test"}, got.To)
	assert.Equal(t, "You're registered: Career Night", got.Subject)
	assert.Contains(t, got.Html, "Career Night")
	assert.Contains(t, got.Html, "2026-11-20 at 18:30")
	assert.Contains(t, got.Html, "Main Hall")
	assert.Contains(t, got.Html, "2026 Campus Events")
	assert.Equal(t, before+1, sentCount("sent"))
}

func TestSendEscapesEventFields(t *testing.T) {
	var got resend.SendEmailRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "email-124"})
	})

	msg := confirmation
	msg.EventTitle = "<script>alert(1)</script>"
	require.NoError(t, svc.SendRegistrationConfirmation(context.Background(), msg))
	assert.NotContains(t, got.Html, "<script>")
}

func TestSendRateLimited(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-RateLimit-Limit", "100")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "60")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Rate limit exceeded"})
	})

	before := sentCount("failed")
	err := svc.SendRegistrationConfirmation(context.Background(), confirmation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, before+1, sentCount("failed"))
}

func TestSendAPIError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Invalid request", "name": "validation_error"})
	})

	err := svc.SendRegistrationConfirmation(context.Background(), confirmation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resend API error")
}

func TestSendCancelledContext(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called with a cancelled context")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, svc.SendRegistrationConfirmation(ctx, confirmation))
}

func TestSendWithoutClient(t *testing.T) {
	cfg := enabledConfig()
	cfg.ResendAPIKey = ""
	svc, err := NewService(cfg, zerolog.Nop())
	require.NoError(t, err)

	err = svc.SendRegistrationConfirmation(context.Background(), confirmation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestDisabledServiceSkips(t *testing.T) {
	svc, err := NewService(config.EmailConfig{}, zerolog.Nop())
	require.NoError(t, err)

	before := sentCount("skipped")
	require.NoError(t, svc.SendRegistrationConfirmation(context.Background(), confirmation))
	assert.Equal(t, before+1, sentCount("skipped"))
}

func TestInvalidAddresses(t *testing.T) {
	_, err := NewService(config.EmailConfig{Enabled: true, From: "not an address"}, zerolog.Nop())
	assert.Error(t, err)

	svc, err := NewService(config.EmailConfig{}, zerolog.Nop())
	require.NoError(t, err)
	msg := confirmation
	msg.To = "ada@campus.test\r\nBcc: all@campus.test"
	assert.Error(t, svc.SendRegistrationConfirmation(context.Background(), msg))
}
