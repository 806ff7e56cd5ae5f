package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reservemap/reservemap/internal/api/middleware"
	"github.com/reservemap/reservemap/internal/reserve"
	"github.com/reservemap/reservemap/internal/session"
)

type emptyBackend struct{}

func (emptyBackend) Operators(context.Context) ([]reserve.Operator, error) { return nil, nil }
func (emptyBackend) Config(context.Context) (reserve.BackendConfig, error) {
	return reserve.BackendConfig{}, nil
}
func (emptyBackend) SearchReserves(context.Context, string, int) ([]reserve.Summary, error) {
	return nil, nil
}
func (emptyBackend) ReservesAtPoint(context.Context, float64, float64) ([]reserve.Summary, error) {
	return nil, nil
}
func (emptyBackend) Reserve(context.Context, string) (*reserve.Detail, error) {
	return nil, reserve.ErrNotFound
}

type fakeAuthorizer struct {
	sess      *session.Session
	err       error
	gotID     string
	gotToken  string
	callCount int
}

func (f *fakeAuthorizer) Authorize(id, token string) (*session.Session, error) {
	f.callCount++
	f.gotID, f.gotToken = id, token
	if f.err != nil {
		return nil, f.err
	}
	return f.sess, nil
}

func newTestSession(t *testing.T, id string) *session.Session {
	t.Helper()
	s := session.New(session.Config{ID: id, URL: "https://map.example/", Backend: emptyBackend{}, Logger: zerolog.Nop()})
	t.Cleanup(s.Close)
	return s
}

func sessionRouter(auth *fakeAuthorizer) http.Handler {
	r := chi.NewRouter()
	r.With(middleware.SessionAuth(auth)).Get("/sessions/{sessionId}/state", func(w http.ResponseWriter, r *http.Request) {
		s := middleware.GetSession(r.Context())
		if s == nil {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(s.ID()))
	})
	return r
}

func TestSessionAuth_MissingToken(t *testing.T) {
	auth := &fakeAuthorizer{}
	req := httptest.NewRequest(http.MethodGet, "/sessions/s1/state", http.NoBody)
	rec := httptest.NewRecorder()

	sessionRouter(auth).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing session token")
	assert.Zero(t, auth.callCount)
}

func TestSessionAuth_InvalidHeaderFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"just bearer", "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuthorizer{}
			req := httptest.NewRequest(http.MethodGet, "/sessions/s1/state", http.NoBody)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			sessionRouter(auth).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Zero(t, auth.callCount)
		})
	}
}

func TestSessionAuth_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"expired", session.ErrTokenExpired, http.StatusUnauthorized, "session token has expired"},
		{"invalid", session.ErrInvalidToken, http.StatusUnauthorized, "invalid session token"},
		{"unknown session", session.ErrSessionNotFound, http.StatusNotFound, "session not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuthorizer{err: tt.err}
			req := httptest.NewRequest(http.MethodGet, "/sessions/s1/state", http.NoBody)
			req.Header.Set("Authorization", "Bearer tok")
			rec := httptest.NewRecorder()

			sessionRouter(auth).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.wantDetail)
		})
	}
}

func TestSessionAuth_BearerHeader(t *testing.T) {
	auth := &fakeAuthorizer{sess: newTestSession(t, "s1")}
	req := httptest.NewRequest(http.MethodGet, "/sessions/s1/state", http.NoBody)
	req.Header.Set("Authorization", "bearer tok-123")
	rec := httptest.NewRecorder()

	sessionRouter(auth).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", rec.Body.String())
	assert.Equal(t, "s1", auth.gotID)
	assert.Equal(t, "tok-123", auth.gotToken)
}

func TestSessionAuth_QueryToken(t *testing.T) {
	auth := &fakeAuthorizer{sess: newTestSession(t, "s1")}
	req := httptest.NewRequest(http.MethodGet, "/sessions/s1/state?token=tok-q", http.NoBody)
	rec := httptest.NewRecorder()

	sessionRouter(auth).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-q", auth.gotToken)
}

func TestGetSession_NoAuth(t *testing.T) {
	assert.Nil(t, middleware.GetSession(context.Background()))
}
