package middleware

import (
	"net/http"

	"github.com/campus-events/server/internal/api/problem"
	"github.com/gorilla/csrf"
)

// CSRFProtection guards cookie-authenticated state changes with gorilla/csrf's
// double-submit token. Clients read the token from the X-CSRF-Token response
// header of any GET and echo it on POST.
func CSRFProtection(authKey []byte, secure bool) func(http.Handler) http.Handler {
	protect := csrf.Protect(authKey,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.RequestHeader("X-CSRF-Token"),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)
	return func(next http.Handler) http.Handler {
		return protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-CSRF-Token", csrf.Token(r))
			next.ServeHTTP(w, r)
		}))
	}
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, r, http.StatusForbidden, "CSRF token validation failed", csrf.FailureReason(r), "")
}
