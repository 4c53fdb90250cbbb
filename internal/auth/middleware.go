package auth

import (
	"net/http"
	"strings"
)

// SessionCookieName is the cookie holding the session token.
const SessionCookieName = "ovpn_session"

// Middleware is a chi-compatible HTTP middleware that enforces authentication
// and stores the viewer's Identity in the request context.
//
// Public paths that bypass auth:
//   - GET  /login   (login page)
//   - POST /login   (login form submission)
//   - POST /logout  (cookie clearing, harmless without a session)
//   - /static/*     (CSS and JS needed by the login page)
//
// API requests (/api/*) that fail auth receive a 401 JSON response.
// All other unauthenticated requests are redirected to /login.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if isPublicPath(path) {
			next.ServeHTTP(w, r)
			return
		}

		if id, ok := m.Authenticate(r); ok {
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
			return
		}

		if strings.HasPrefix(path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}

		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
}

// Authenticate resolves the viewer of r from the trusted proxy header, a
// Bearer token or the session cookie, in that order.
func (m *Manager) Authenticate(r *http.Request) (Identity, bool) {
	if m.trustedHeader != "" {
		if user := strings.TrimSpace(r.Header.Get(m.trustedHeader)); user != "" {
			return Identity{Username: user, Session: headerSessionPrefix + user}, true
		}
	}
	// Bearer token header takes precedence over the cookie (for script access).
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return m.ValidateToken(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return m.ValidateToken(cookie.Value)
	}
	return Identity{}, false
}

func isPublicPath(path string) bool {
	return path == "/login" ||
		path == "/logout" ||
		strings.HasPrefix(path, "/static/")
}
