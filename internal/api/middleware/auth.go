package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/reservemap/reservemap/internal/api/models"
	"github.com/reservemap/reservemap/internal/session"
)

// SessionParam is the chi URL parameter naming the session.
const SessionParam = "sessionId"

type sessionKey struct{}

// SessionAuthorizer resolves a session from its id and access token.
type SessionAuthorizer interface {
	Authorize(id, token string) (*session.Session, error)
}

// SessionAuth authenticates requests against the session named in the URL.
// The token comes from a bearer Authorization header or, for EventSource and
// tile requests that cannot set headers, the token query parameter.
func SessionAuth(sessions SessionAuthorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := sessionToken(r)
			if !ok {
				writeUnauthorized(w, r, "invalid authorization header format")
				return
			}
			if token == "" {
				writeUnauthorized(w, r, "missing session token")
				return
			}

			s, err := sessions.Authorize(chi.URLParam(r, SessionParam), token)
			if err != nil {
				switch {
				case errors.Is(err, session.ErrTokenExpired):
					writeUnauthorized(w, r, "session token has expired")
				case errors.Is(err, session.ErrInvalidToken):
					writeUnauthorized(w, r, "invalid session token")
				case errors.Is(err, session.ErrSessionNotFound):
					problem := models.NewNotFound(GetRequestID(r.Context()), "session not found")
					problem.Instance = r.URL.Path
					problem.Write(w)
				default:
					writeUnauthorized(w, r, "authentication failed")
				}
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionToken extracts the token. It reports false for a malformed
// Authorization header.
func sessionToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return r.URL.Query().Get("token"), true
	}

	const bearerPrefix = "Bearer "
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	return header[len(bearerPrefix):], true
}

// writeUnauthorized writes a 401 problem. It lives here because the response
// package imports middleware.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetSession returns the authenticated session, or nil outside SessionAuth.
func GetSession(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s
}
