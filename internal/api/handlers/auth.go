package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/campus-events/server/internal/auth"
	"github.com/campus-events/server/internal/domain/users"
	"github.com/campus-events/server/internal/metrics"
	"github.com/campus-events/server/internal/validation"
	"github.com/rs/zerolog"
)

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	Users    *users.Service
	Sessions *auth.Sessions
	Cookie   CookieConfig
	Env      string
}

func NewAuthHandler(usersService *users.Service, sessions *auth.Sessions, cookie CookieConfig, env string) *AuthHandler {
	return &AuthHandler{Users: usersService, Sessions: sessions, Cookie: cookie, Env: env}
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

type loginResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
	Role    string `json:"role"`
}

// Register handles POST /api/register/.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input users.RegisterInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	user, err := h.Users.Register(r.Context(), input)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{Message: "User registered successfully", UserID: user.ID})
}

// Login handles POST /api/login/. Any session the client already holds is
// ended before a fresh one is issued.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input users.LoginInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	user, err := h.Users.Authenticate(r.Context(), input)
	if err != nil {
		var validationErr validation.Error
		if errors.Is(err, users.ErrInvalidCredentials) || errors.As(err, &validationErr) {
			metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		} else {
			metrics.LoginsTotal.WithLabelValues("error").Inc()
		}
		writeError(w, r, err, h.Env)
		return
	}

	if err := h.Sessions.End(r.Context(), auth.SessionFromContext(r.Context())); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to end previous session")
	}
	token, expires, err := h.Sessions.Start(r.Context(), user.ID)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		writeError(w, r, err, h.Env)
		return
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	http.SetCookie(w, h.sessionCookie(token, expires))
	writeJSON(w, http.StatusOK, loginResponse{
		Message: "Login successful",
		UserID:  user.ID,
		Role:    user.Role.String(),
	})
}

// Logout handles POST /api/logout/. It succeeds with or without a session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.End(r.Context(), auth.SessionFromContext(r.Context())); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	http.SetCookie(w, h.clearCookie())
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logout successful"})
}

func (h *AuthHandler) sessionCookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *AuthHandler) clearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
