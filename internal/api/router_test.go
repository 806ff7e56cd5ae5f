package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reservemap/reservemap/internal/api"
	"github.com/reservemap/reservemap/internal/api/models"
	"github.com/reservemap/reservemap/internal/provider/resilience"
	"github.com/reservemap/reservemap/internal/reserve"
	"github.com/reservemap/reservemap/internal/session"
	"github.com/reservemap/reservemap/internal/tiles"
)

type nopBackend struct{}

func (nopBackend) Operators(context.Context) ([]reserve.Operator, error) { return nil, nil }
func (nopBackend) Config(context.Context) (reserve.BackendConfig, error) {
	return reserve.BackendConfig{}, nil
}
func (nopBackend) SearchReserves(context.Context, string, int) ([]reserve.Summary, error) {
	return nil, nil
}
func (nopBackend) ReservesAtPoint(context.Context, float64, float64) ([]reserve.Summary, error) {
	return nil, nil
}
func (nopBackend) Reserve(context.Context, string) (*reserve.Detail, error) {
	return nil, reserve.ErrNotFound
}
func (nopBackend) Tile(context.Context, uint32, uint32, uint32) ([]byte, error) { return nil, nil }
func (nopBackend) Ready(context.Context) error                                  { return nil }

func newTestRouter(t *testing.T) (http.Handler, *session.Manager) {
	t.Helper()
	tokens, err := session.NewTokenService(session.TokenConfig{SigningKey: "router-test-key"})
	require.NoError(t, err)
	mgr := session.NewManager(session.ManagerConfig{Backend: nopBackend{}, Tokens: tokens, Logger: zerolog.Nop()})
	t.Cleanup(mgr.Shutdown)

	router := api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "now",
		Logger:    zerolog.Nop(),
		Sessions:  mgr,
		Renderer:  tiles.NewRenderer(tiles.RendererConfig{Source: nopBackend{}, Logger: zerolog.Nop()}),
		Registry:  resilience.NewRegistry(),
		Readiness: nopBackend{},
	})
	return router, mgr
}

func TestRouter_OpsEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/v1/ops/health", "/v1/ops/ready"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestRouter_SessionLifecycle(t *testing.T) {
	router, mgr := newTestRouter(t)

	body, err := json.Marshal(map[string]any{"url": "https://map.example/?zoom=7"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.SessionCreated
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 1, mgr.Len())
	base := "/v1/sessions/" + created.SessionID

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base+"/state", http.NoBody))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base+"/state?token="+created.Token, http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"zoom":7`)

	req = httptest.NewRequest(http.MethodPost, base+"/events", strings.NewReader(`{"type":"clear_filters"}`))
	req.Header.Set("Authorization", "Bearer "+created.Token)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, base, http.NoBody)
	req.Header.Set("Authorization", "Bearer "+created.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, mgr.Len())
}

func TestRouter_CreateRequiresJSON(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader("url=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_UnknownSession(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/nope/state?token=garbage", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
