// Package api implements the PiNotes REST API using chi.
package api

import "net/http"

// sessionCookie is the name of the session cookie set on login.
const sessionCookie = "session"

// RequireSession returns middleware that validates the session cookie via
// the auth service and rejects unauthenticated requests with 401.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := h.auth.Validate(cookieValue(r)); !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody("not authenticated"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func cookieValue(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}
