package middleware

import (
	"net/http"

	"github.com/campus-events/server/internal/auth"
)

// Session copies the session cookie, if any, into the request context as an
// auth.Session. It never rejects a request; the guard decides.
func Session(cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var session auth.Session
			if cookie, err := r.Cookie(cookieName); err == nil {
				session.Token = cookie.Value
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
		})
	}
}
