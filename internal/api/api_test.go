package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/campus-events/server/internal/auth"
	"github.com/campus-events/server/internal/config"
	"github.com/campus-events/server/internal/domain/events"
	"github.com/campus-events/server/internal/domain/users"
	"github.com/campus-events/server/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	auth.PasswordCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type testEnv struct {
	server *httptest.Server
	store  *memory.Store
	users  *users.Service
	events *events.Service
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Storage.Driver = config.StorageDriverMemory
	cfg.Sessions.Store = config.SessionStoreMemory
	cfg.Jobs.Enabled = false
	cfg.RateLimit = config.RateLimitConfig{}
	cfg.Environment = "test"
	return cfg
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	store := memory.New()
	logger := zerolog.Nop()
	usersService := users.NewService(store.Users(), logger)
	eventsService := events.NewService(store.Events(), logger)
	sessions := auth.NewSessions(store.Sessions(), cfg.Sessions.TTL)

	handler := NewRouter(Dependencies{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Users:    usersService,
		Events:   eventsService,
		Sessions: sessions,
		Build:    BuildInfo{Version: "test"},
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &testEnv{server: server, store: store, users: usersService, events: eventsService}
}

// client is one browser: it keeps its own session cookie.
type client struct {
	t    *testing.T
	http *http.Client
	base string
}

func (e *testEnv) client(t *testing.T) *client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, http: &http.Client{Jar: jar}, base: e.server.URL}
}

func (c *client) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(c.t, err)
		reader = strings.NewReader(string(payload))
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(res.Body)
	require.NoError(c.t, err)
	if len(raw) > 0 {
		require.NoError(c.t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return res.StatusCode, decoded
}

func (c *client) get(path string) (int, map[string]any) {
	return c.do(http.MethodGet, path, nil)
}

func (c *client) post(path string, body any) (int, map[string]any) {
	return c.do(http.MethodPost, path, body)
}

func (c *client) login(email, password string) {
	c.t.Helper()
	status, body := c.post("/api/login/", map[string]string{"email": email, "password": password})
	require.Equal(c.t, http.StatusOK, status, body)
}

func (e *testEnv) signup(t *testing.T, name, role string) *client {
	t.Helper()
	c := e.client(t)
	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@campus.test"
	status, body := c.post("/api/register/", map[string]string{
		"name": name, "email": email, "password": "s3cret-pass", "role": role,
	})
	require.Equal(t, http.StatusCreated, status, body)
	c.login(email, "s3cret-pass")
	return c
}

func (e *testEnv) admin(t *testing.T) *client {
	t.Helper()
	_, err := e.users.EnsureAdmin(context.Background(), "Root", "root@campus.test", "admin-pass")
	require.NoError(t, err)
	c := e.client(t)
	c.login("root@campus.test", "admin-pass")
	return c
}

func eventPayload(title string, capacity int) map[string]any {
	return map[string]any{
		"title":       title,
		"description": "An evening of talks",
		"date":        "2026-11-20",
		"time":        "18:30",
		"location":    "Main Hall",
		"category":    "seminar",
		"capacity":    capacity,
	}
}

func idOf(t *testing.T, body map[string]any, key string) int64 {
	t.Helper()
	value, ok := body[key].(float64)
	require.True(t, ok, "missing %s in %v", key, body)
	return int64(value)
}

func eventList(t *testing.T, body map[string]any) []map[string]any {
	t.Helper()
	raw, ok := body["events"].([]any)
	require.True(t, ok, "missing events in %v", body)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		out = append(out, item.(map[string]any))
	}
	return out
}

func TestCreateApproveDetailRoundTrip(t *testing.T) {
	env := newTestEnv(t, testConfig())
	staff := env.signup(t, "Sam Staff", "staff")
	admin := env.admin(t)

	status, body := staff.post("/api/events/create/", eventPayload("Career Night", 50))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Event created successfully", body["message"])
	id := idOf(t, body, "event_id")

	status, _ = staff.get(fmt.Sprintf("/api/events/%d/", id))
	assert.Equal(t, http.StatusNotFound, status, "pending events are hidden")

	status, body = admin.get("/api/admin/events/pending/")
	require.Equal(t, http.StatusOK, status)
	pending := eventList(t, body)
	require.Len(t, pending, 1)
	assert.Equal(t, "pending", pending[0]["status"])
	assert.Equal(t, "Sam Staff", pending[0]["organizer"])

	status, body = admin.post(fmt.Sprintf("/api/admin/events/%d/approve/", id), nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "approved", body["status"])

	status, body = staff.get(fmt.Sprintf("/api/events/%d/", id))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Career Night", body["title"])
	assert.Equal(t, "2026-11-20", body["date"])
	assert.Equal(t, "18:30", body["time"])
	assert.Equal(t, float64(0), body["registered_count"])

	status, body = env.client(t).get("/api/events/all/")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, eventList(t, body), 1)

	// approving twice reports not found
	status, body = admin.post(fmt.Sprintf("/api/admin/events/%d/approve/", id), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Event not found", body["error"])
}

func TestRoleEnforcement(t *testing.T) {
	env := newTestEnv(t, testConfig())
	student := env.signup(t, "Stu Dent", "")
	staff := env.signup(t, "Sam Staff", "staff")
	anonymous := env.client(t)

	status, body := anonymous.post("/api/events/create/", eventPayload("X", 5))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Authentication required", body["error"])

	status, body = student.post("/api/events/create/", eventPayload("X", 5))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Permission denied", body["error"])

	status, body = staff.post("/api/events/create/", eventPayload("X", 5))
	require.Equal(t, http.StatusCreated, status)
	id := idOf(t, body, "event_id")

	// non-admin approve
	status, _ = staff.post(fmt.Sprintf("/api/admin/events/%d/approve/", id), nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = staff.post(fmt.Sprintf("/api/admin/events/%d/reject/", id), nil)
	assert.Equal(t, http.StatusForbidden, status)
	stored, err := env.events.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, events.StatusPending, stored.Status)
	status, _ = env.client(t).get(fmt.Sprintf("/api/events/%d/", id))
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = staff.post(fmt.Sprintf("/api/events/%d/delete/", id), nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = staff.get(fmt.Sprintf("/api/events/%d/attendees/", id))
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = student.get("/api/admin/events/pending/")
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = anonymous.get("/api/user/events/")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCapacityOneScenario(t *testing.T) {
	env := newTestEnv(t, testConfig())
	admin := env.admin(t)
	first := env.signup(t, "First Student", "")
	second := env.signup(t, "Second Student", "")

	_, body := admin.post("/api/events/create/", eventPayload("Tiny Room", 1))
	id := idOf(t, body, "event_id")
	status, _ := admin.post(fmt.Sprintf("/api/admin/events/%d/approve/", id), nil)
	require.Equal(t, http.StatusOK, status)

	status, body = first.post(fmt.Sprintf("/api/events/%d/register/", id), nil)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Registered for event successfully", body["message"])

	status, body = first.post(fmt.Sprintf("/api/events/%d/register/", id), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Already registered for this event", body["error"])

	status, body = second.post(fmt.Sprintf("/api/events/%d/register/", id), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Event is at full capacity", body["error"])

	status, body = admin.get(fmt.Sprintf("/api/events/%d/attendees/", id))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])
	attendees := body["attendees"].([]any)
	require.Len(t, attendees, 1)
	assert.Equal(t, "first.student@campus.test", attendees[0].(map[string]any)["email"])

	// the seat frees up after a cancellation
	status, _ = first.post(fmt.Sprintf("/api/events/%d/cancel/", id), nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = first.post(fmt.Sprintf("/api/events/%d/cancel/", id), nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = second.post(fmt.Sprintf("/api/events/%d/register/", id), nil)
	assert.Equal(t, http.StatusCreated, status)

	status, body = second.get("/api/user/events/")
	require.Equal(t, http.StatusOK, status)
	mine := eventList(t, body)
	require.Len(t, mine, 1)
	assert.Equal(t, "Tiny Room", mine[0]["title"])
	assert.NotEmpty(t, mine[0]["registered_at"])
}

func TestRegisterForUnapprovedEvent(t *testing.T) {
	env := newTestEnv(t, testConfig())
	staff := env.signup(t, "Sam Staff", "staff")
	student := env.signup(t, "Stu Dent", "")

	_, body := staff.post("/api/events/create/", eventPayload("Draft", 10))
	id := idOf(t, body, "event_id")

	status, body := student.post(fmt.Sprintf("/api/events/%d/register/", id), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Event not found", body["error"])
}

func TestEditAndDelete(t *testing.T) {
	env := newTestEnv(t, testConfig())
	admin := env.admin(t)

	_, body := admin.post("/api/events/create/", eventPayload("Old Title", 10))
	id := idOf(t, body, "event_id")

	status, body := admin.post(fmt.Sprintf("/api/events/%d/edit/", id), map[string]any{"title": "New Title", "capacity": 20})
	require.Equal(t, http.StatusOK, status, body)
	event := body["event"].(map[string]any)
	assert.Equal(t, "New Title", event["title"])
	assert.Equal(t, float64(20), event["capacity"])
	assert.Equal(t, "Main Hall", event["location"])

	status, body = admin.post(fmt.Sprintf("/api/events/%d/edit/", id), map[string]any{"capacity": 0})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "capacity", body["field"])

	status, _ = admin.post("/api/events/999/edit/", map[string]any{"title": "Ghost"})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = admin.post(fmt.Sprintf("/api/events/%d/delete/", id), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Event deleted successfully", body["message"])
	status, _ = admin.post(fmt.Sprintf("/api/events/%d/delete/", id), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t, testConfig())
	admin := env.admin(t)

	for _, p := range []map[string]any{
		{"title": "Robotics Workshop", "location": "Lab 2", "category": "workshop"},
		{"title": "Chess Club", "location": "Library", "category": "activity"},
		{"title": "Board Games", "location": "Robotics Lab", "category": "activity"},
	} {
		payload := eventPayload(p["title"].(string), 10)
		payload["location"] = p["location"]
		payload["category"] = p["category"]
		_, body := admin.post("/api/events/create/", payload)
		id := idOf(t, body, "event_id")
		status, _ := admin.post(fmt.Sprintf("/api/admin/events/%d/approve/", id), nil)
		require.Equal(t, http.StatusOK, status)
	}

	anon := env.client(t)
	titles := func(path string) []string {
		status, body := anon.get(path)
		require.Equal(t, http.StatusOK, status)
		var out []string
		for _, e := range eventList(t, body) {
			out = append(out, e["title"].(string))
		}
		return out
	}

	assert.ElementsMatch(t, []string{"Robotics Workshop", "Board Games"}, titles("/api/events/search/?q=robotics"))
	assert.ElementsMatch(t, []string{"Board Games"}, titles("/api/events/search/?q=robotics&category=activity"))
	assert.Len(t, titles("/api/events/search/"), 3)
	assert.Empty(t, titles("/api/events/search/?category=party"))
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, testConfig())
	c := env.client(t)

	status, body := c.post("/api/register/", map[string]string{"name": "Ada", "email": "ADA@campus.test", "password": "pw-123456"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User registered successfully", body["message"])

	status, body = c.post("/api/register/", map[string]string{"name": "Ada 2", "email": "ada@campus.test", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Email already exists", body["error"])

	status, body = c.post("/api/login/", map[string]string{"email": "ada@campus.test", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["error"])

	status, body = c.post("/api/login/", map[string]string{"email": "ada@campus.test", "password": "pw-123456"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "student", body["role"])

	status, _ = c.get("/api/user/events/")
	assert.Equal(t, http.StatusOK, status)

	status, body = c.post("/api/logout/", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Logout successful", body["message"])

	status, _ = c.get("/api/user/events/")
	assert.Equal(t, http.StatusUnauthorized, status)

	// logout without a session is still fine
	status, _ = c.post("/api/logout/", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestSessionCookieAttributes(t *testing.T) {
	env := newTestEnv(t, testConfig())
	c := env.client(t)
	c.post("/api/register/", map[string]string{"name": "Ada", "email": "ada@campus.test", "password": "pw-123456"})

	res, err := http.Post(env.server.URL+"/api/login/", "application/json",
		strings.NewReader(`{"email":"ada@campus.test","password":"pw-123456"}`))
	require.NoError(t, err)
	defer res.Body.Close()

	var session *http.Cookie
	for _, cookie := range res.Cookies() {
		if cookie.Name == "campus_session" {
			session = cookie
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, session.SameSite)
	assert.NotEmpty(t, session.Value)
}

func TestDeletedUserSession(t *testing.T) {
	env := newTestEnv(t, testConfig())
	c := env.signup(t, "Gone Soon", "")

	u, err := env.store.Users().GetByEmail(context.Background(), "gone.soon@campus.test")
	require.NoError(t, err)
	env.store.DeleteUser(u.ID)

	status, body := c.get("/api/user/events/")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "User not found", body["error"])
}

func TestMalformedRequests(t *testing.T) {
	env := newTestEnv(t, testConfig())
	c := env.client(t)

	status, body := c.post("/api/register/", `{"name": `)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid JSON body", body["error"])

	status, body = c.post("/api/register/", `{"name":"`+strings.Repeat("a", 2<<20)+`"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Request body too large", body["error"])

	status, body = c.post("/api/register/", map[string]string{"email": "x@campus.test", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "name is required", body["error"])

	status, _ = c.get("/api/events/abc/")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = c.get("/api/events/0/")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = c.get("/api/nope/")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = c.get("/api/login/")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestLoginRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.LoginPer15Minutes = 2
	env := newTestEnv(t, cfg)
	c := env.client(t)

	for i := 0; i < 2; i++ {
		status, _ := c.post("/api/login/", map[string]string{"email": "who@campus.test", "password": "x"})
		require.Equal(t, http.StatusUnauthorized, status)
	}
	status, body := c.post("/api/login/", map[string]string{"email": "who@campus.test", "password": "x"})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "Too many requests", body["error"])

	// other routes use the public tier
	status, _ = c.get("/api/events/all/")
	assert.Equal(t, http.StatusOK, status)
}

func TestOperationalEndpoints(t *testing.T) {
	env := newTestEnv(t, testConfig())
	c := env.client(t)

	status, body := c.get("/health")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])

	status, body = c.get("/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = c.get("/readyz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	res, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(raw), "campus_events_http_requests_total")
}

func TestResponsesCarryRequestID(t *testing.T) {
	env := newTestEnv(t, testConfig())

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/events/all/", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "trace-me")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "trace-me", res.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
}
