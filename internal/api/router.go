package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/campus-events/server/internal/api/handlers"
	"github.com/campus-events/server/internal/api/middleware"
	"github.com/campus-events/server/internal/api/problem"
	"github.com/campus-events/server/internal/audit"
	"github.com/campus-events/server/internal/auth"
	"github.com/campus-events/server/internal/config"
	"github.com/campus-events/server/internal/domain/events"
	"github.com/campus-events/server/internal/domain/users"
	"github.com/campus-events/server/internal/metrics"
	"github.com/rs/zerolog"
)

// Dependencies are the services the HTTP layer is built from. Health is
// optional; a storage-only checker is used when it is nil.
type Dependencies struct {
	Config   config.Config
	Logger   zerolog.Logger
	Store    handlers.Pinger
	Users    *users.Service
	Events   *events.Service
	Sessions *auth.Sessions
	Health   *handlers.HealthChecker
	Build    BuildInfo
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	env := cfg.Environment

	guard := auth.NewGuard(deps.Sessions, deps.Users)
	auditLogger := audit.NewLogger(deps.Logger)

	authHandler := handlers.NewAuthHandler(deps.Users, deps.Sessions, handlers.CookieConfig{
		Name:   cfg.Sessions.CookieName,
		Secure: cfg.Sessions.CookieSecure,
	}, env)
	eventsHandler := handlers.NewEventsHandler(deps.Events, guard, auditLogger, env)
	adminHandler := handlers.NewAdminHandler(deps.Events, guard, auditLogger, env)
	registrationsHandler := handlers.NewRegistrationsHandler(deps.Events, guard, env)

	health := deps.Health
	if health == nil {
		build := deps.Build.withDefaults()
		health = handlers.NewHealthChecker(deps.Store, build.Version, build.GitCommit)
	}

	limit := middleware.RateLimit(cfg.RateLimit)
	loginTier := middleware.WithRateLimitTierHandler(middleware.TierLogin)

	get := func(h http.HandlerFunc) http.Handler {
		return methodMux(map[string]http.Handler{http.MethodGet: limit(h)})
	}
	post := func(h http.HandlerFunc) http.Handler {
		return methodMux(map[string]http.Handler{http.MethodPost: limit(h)})
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", handlers.Readyz(deps.Store))
	mux.Handle("/health", methodMux(map[string]http.Handler{http.MethodGet: health.Health()}))
	mux.Handle("/version", methodMux(map[string]http.Handler{http.MethodGet: VersionHandler(deps.Build)}))
	mux.Handle("/metrics", methodMux(map[string]http.Handler{http.MethodGet: metrics.Handler()}))

	mux.Handle("/api/register/{$}", post(authHandler.Register))
	mux.Handle("/api/login/{$}", methodMux(map[string]http.Handler{
		http.MethodPost: loginTier(limit(http.HandlerFunc(authHandler.Login))),
	}))
	mux.Handle("/api/logout/{$}", post(authHandler.Logout))

	mux.Handle("/api/events/all/{$}", get(eventsHandler.List))
	mux.Handle("/api/events/search/{$}", get(eventsHandler.Search))
	mux.Handle("/api/events/create/{$}", post(eventsHandler.Create))
	mux.Handle("/api/events/{id}/{$}", get(eventsHandler.Get))
	mux.Handle("/api/events/{id}/edit/{$}", post(eventsHandler.Edit))
	mux.Handle("/api/events/{id}/delete/{$}", post(eventsHandler.Delete))
	mux.Handle("/api/events/{id}/register/{$}", post(registrationsHandler.Register))
	mux.Handle("/api/events/{id}/cancel/{$}", post(registrationsHandler.Cancel))
	mux.Handle("/api/events/{id}/attendees/{$}", get(adminHandler.Attendees))

	mux.Handle("/api/admin/events/pending/{$}", get(adminHandler.Pending))
	mux.Handle("/api/admin/events/{id}/approve/{$}", post(adminHandler.Approve))
	mux.Handle("/api/admin/events/{id}/reject/{$}", post(adminHandler.Reject))

	mux.Handle("/api/user/events/{$}", get(registrationsHandler.UserEvents))

	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, r, http.StatusNotFound, "Not found", nil, env)
	}))

	var handler http.Handler = mux
	handler = middleware.Session(cfg.Sessions.CookieName)(handler)
	if cfg.CSRF.Enabled {
		handler = middleware.CSRFProtection([]byte(cfg.CSRF.AuthKey), cfg.Sessions.CookieSecure)(handler)
	}
	handler = middleware.RequestSize(middleware.DefaultMaxBodySize)(handler)
	handler = middleware.SecurityHeaders(cfg.IsProduction())(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(deps.Logger)(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	if cfg.Tracing.Enabled {
		handler = middleware.Tracing(handler)
	}
	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		problem.WriteBody(w, http.StatusMethodNotAllowed, problem.Body{Error: "Method not allowed"})
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
