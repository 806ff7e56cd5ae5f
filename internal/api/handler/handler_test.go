package handler_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reservemap/reservemap/internal/api/handler"
	"github.com/reservemap/reservemap/internal/api/middleware"
	"github.com/reservemap/reservemap/internal/api/models"
	"github.com/reservemap/reservemap/internal/filter"
	"github.com/reservemap/reservemap/internal/reserve"
	"github.com/reservemap/reservemap/internal/session"
	"github.com/reservemap/reservemap/internal/tiles"
)

const waitFor = 2 * time.Second

type fakeBackend struct {
	tile    []byte
	tileErr error
}

func (fakeBackend) Operators(context.Context) ([]reserve.Operator, error) {
	return []reserve.Operator{{ID: 7, Name: "Natuurmonumenten"}}, nil
}

func (fakeBackend) Config(context.Context) (reserve.BackendConfig, error) {
	return reserve.BackendConfig{VectorTileMaxZoom: 12}, nil
}

func (fakeBackend) SearchReserves(context.Context, string, int) ([]reserve.Summary, error) {
	return nil, nil
}

func (fakeBackend) ReservesAtPoint(context.Context, float64, float64) ([]reserve.Summary, error) {
	return nil, nil
}

func (fakeBackend) Reserve(context.Context, string) (*reserve.Detail, error) {
	return nil, reserve.ErrNotFound
}

func (b fakeBackend) Tile(context.Context, uint32, uint32, uint32) ([]byte, error) {
	return b.tile, b.tileErr
}

func vectorTile(t *testing.T) []byte {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{10, 10})
	f.ID = uint64(4)
	f.Properties = geojson.Properties{"operator_ids": "7", "protect_class": "2", "source": "osm", "osm_type": "way"}
	fc.Append(f)
	data, err := mvt.Marshal(mvt.Layers{mvt.NewLayer("reserves", fc)})
	require.NoError(t, err)
	return data
}

type testEnv struct {
	manager *session.Manager
	router  http.Handler
}

func newEnv(t *testing.T, backend fakeBackend) *testEnv {
	t.Helper()
	tokens, err := session.NewTokenService(session.TokenConfig{SigningKey: "handler-test-key"})
	require.NoError(t, err)
	mgr := session.NewManager(session.ManagerConfig{
		Backend: backend,
		Tokens:  tokens,
		Logger:  zerolog.Nop(),
	})
	t.Cleanup(mgr.Shutdown)

	h := handler.NewSessionHandler(mgr, tiles.NewRenderer(tiles.RendererConfig{Source: backend, Logger: zerolog.Nop()}), zerolog.Nop())
	r := chi.NewRouter()
	r.Post("/v1/sessions", h.Create)
	r.Route("/v1/sessions/{sessionId}", func(r chi.Router) {
		r.Use(middleware.SessionAuth(mgr))
		r.Get("/state", h.State)
		r.Post("/events", h.Events)
		r.Get("/stream", h.Stream)
		r.Get("/tiles/{z}/{x}/{y}.mvt", h.Tile)
		r.Delete("/", h.Delete)
	})
	return &testEnv{manager: mgr, router: r}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) create(t *testing.T, rawURL string) models.SessionCreated {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/sessions", "", map[string]any{
		"url":      rawURL,
		"viewport": map[string]float64{"width": 1024, "height": 768},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.SessionCreated
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "/v1/sessions/"+created.SessionID, rec.Header().Get("Location"))
	return created
}

func (e *testEnv) waitState(t *testing.T, id string, cond func(models.SessionState) bool) {
	t.Helper()
	s, err := e.manager.Get(id)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return cond(models.SessionState{Version: snap.Version, State: snap.State})
	}, waitFor, 10*time.Millisecond)
}

func TestCreate_ReadsInitialURL(t *testing.T) {
	env := newEnv(t, fakeBackend{})

	created := env.create(t, "https://map.example/?lat=52.1&lng=5.3&zoom=9&operator=7")

	assert.NotEmpty(t, created.Token)
	assert.Equal(t, 9, created.State.Camera.Zoom)
	require.NotNil(t, created.State.Filters.OperatorID)
	assert.Equal(t, int64(7), *created.State.Filters.OperatorID)
	assert.Equal(t, 1, env.manager.Len())
}

func TestCreate_Invalid(t *testing.T) {
	env := newEnv(t, fakeBackend{})

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/sessions", "", map[string]any{"url": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.manager.Len())
}

func TestState_RequiresToken(t *testing.T) {
	env := newEnv(t, fakeBackend{})
	created := env.create(t, "https://map.example/")

	rec := env.do(t, http.MethodGet, "/v1/sessions/"+created.SessionID+"/state", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/sessions/"+created.SessionID+"/state", created.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var st models.SessionState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "https://map.example/", st.State.URL)
}

func TestEvents_AppliesIntent(t *testing.T) {
	env := newEnv(t, fakeBackend{})
	created := env.create(t, "https://map.example/")
	path := "/v1/sessions/" + created.SessionID + "/events"

	rec := env.do(t, http.MethodPost, path, created.Token, map[string]any{"type": "set_source", "source": "wdpa"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	env.waitState(t, created.SessionID, func(st models.SessionState) bool {
		return strings.Contains(st.State.URL, "source=wdpa")
	})
}

func TestEvents_RejectsInvalidIntent(t *testing.T) {
	env := newEnv(t, fakeBackend{})
	created := env.create(t, "https://map.example/")
	path := "/v1/sessions/" + created.SessionID + "/events"

	rec := env.do(t, http.MethodPost, path, created.Token, map[string]any{"type": "camera_settled", "lat": 95.0})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.NotEmpty(t, problem.Errors)
}

func TestTile_FiltersAndMapsErrors(t *testing.T) {
	env := newEnv(t, fakeBackend{tile: vectorTile(t)})
	created := env.create(t, "https://map.example/")
	base := "/v1/sessions/" + created.SessionID + "/tiles/"
	env.waitState(t, created.SessionID, func(st models.SessionState) bool { return st.State.MaxTileZoom == 12 })

	rec := env.do(t, http.MethodGet, base+"3/1/1.mvt", created.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, handler.TileContentType, rec.Header().Get("Content-Type"))
	layers, err := mvt.Unmarshal(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Len(t, layers[0].Features, 1)

	rec = env.do(t, http.MethodGet, base+"13/1/1.mvt", created.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, base+"2/9/0.mvt", created.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, base+"a/1/1.mvt", created.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTile_TouchesSession(t *testing.T) {
	env := newEnv(t, fakeBackend{tile: vectorTile(t)})
	created := env.create(t, "https://map.example/")
	s, err := env.manager.Get(created.SessionID)
	require.NoError(t, err)
	before := s.LastActive()

	time.Sleep(2 * time.Millisecond)
	env.do(t, http.MethodGet, "/v1/sessions/"+created.SessionID+"/tiles/3/1/1.mvt", created.Token, nil)

	assert.True(t, s.LastActive().After(before))
}

func TestTile_HiddenByFilters(t *testing.T) {
	env := newEnv(t, fakeBackend{tile: vectorTile(t)})
	created := env.create(t, "https://map.example/?source=wdpa")

	rec := env.do(t, http.MethodGet, "/v1/sessions/"+created.SessionID+"/tiles/3/1/1.mvt", created.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTile_UpstreamFailure(t *testing.T) {
	env := newEnv(t, fakeBackend{tileErr: errors.New("connection refused")})
	created := env.create(t, "https://map.example/")

	rec := env.do(t, http.MethodGet, "/v1/sessions/"+created.SessionID+"/tiles/3/1/1.mvt", created.Token, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDelete(t *testing.T) {
	env := newEnv(t, fakeBackend{})
	created := env.create(t, "https://map.example/")

	rec := env.do(t, http.MethodDelete, "/v1/sessions/"+created.SessionID+"/", created.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, env.manager.Len())

	rec = env.do(t, http.MethodGet, "/v1/sessions/"+created.SessionID+"/state", created.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStream_PatchesSignals(t *testing.T) {
	env := newEnv(t, fakeBackend{})
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)
	created := env.create(t, "https://map.example/")
	s, err := env.manager.Get(created.SessionID)
	require.NoError(t, err)
	before := s.LastActive()
	time.Sleep(2 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+"/v1/sessions/"+created.SessionID+"/stream?token="+created.Token, http.NoBody)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	sc := bufio.NewScanner(resp.Body)
	var event, data string
	for sc.Scan() {
		line := sc.Text()
		if line == "" && data != "" {
			break
		}
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data += strings.TrimPrefix(line, "data: ")
		}
	}
	assert.Equal(t, "datastar-patch-signals", event)
	assert.Contains(t, data, `"url":"https://map.example/"`)
	assert.Contains(t, data, `"view"`)
	assert.True(t, s.LastActive().After(before), "stream keeps the session active")
}

func TestSignals(t *testing.T) {
	snap := session.Snapshot{Version: 3}
	snap.State.URL = "https://map.example/?reserve=way_1"

	got := handler.Signals(snap)

	assert.Equal(t, uint64(3), got["version"])
	assert.Equal(t, snap.State.URL, got["url"])
	assert.Equal(t, snap.State, got["view"])
	assert.Equal(t, false, got["filtersActive"])

	snap.State.Filters = snap.State.Filters.WithOperator(filter.OperatorPtr(4))
	assert.Equal(t, true, handler.Signals(snap)["filtersActive"])
}
