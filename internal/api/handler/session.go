package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/reservemap/reservemap/internal/api/middleware"
	"github.com/reservemap/reservemap/internal/api/models"
	"github.com/reservemap/reservemap/internal/api/response"
	"github.com/reservemap/reservemap/internal/naturereserves"
	"github.com/reservemap/reservemap/internal/session"
	"github.com/reservemap/reservemap/internal/tiles"
	"github.com/reservemap/reservemap/internal/viewport"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// TileContentType is the media type of vector tiles.
const TileContentType = "application/vnd.mapbox-vector-tile"

// SessionHandler serves map view sessions.
type SessionHandler struct {
	sessions *session.Manager
	tiles    *tiles.Renderer
	logger   zerolog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions *session.Manager, renderer *tiles.Renderer, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, tiles: renderer, logger: logger}
}

// Create handles POST /v1/sessions. The page URL is read here, once.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.CreateSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if errs := input.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "invalid session request", errs)
		return
	}

	var size viewport.Size
	if input.Viewport != nil {
		size = *input.Viewport
	}

	created, err := h.sessions.Create(input.URL, size)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create session")
		response.InternalError(w, r, "failed to create session")
		return
	}

	id := created.Session.ID()
	response.Created(w, r, "/v1/sessions/"+id, models.SessionCreated{
		SessionID: id,
		Token:     created.Token,
		ExpiresAt: models.Timestamp(created.ExpiresAt),
		State:     created.Session.Snapshot().State,
	})
}

// State handles GET /v1/sessions/{sessionId}/state.
func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	snap := middleware.GetSession(r.Context()).Snapshot()
	response.JSON(w, r, http.StatusOK, models.SessionState{Version: snap.Version, State: snap.State})
}

// Events handles POST /v1/sessions/{sessionId}/events. The body is one intent,
// read the way Datastar posts signals.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var intent models.Intent
	if err := datastar.ReadSignals(r, &intent); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	ev, errs := intent.Event()
	if errs != nil {
		response.BadRequest(w, r, "invalid intent", errs)
		return
	}

	s := middleware.GetSession(r.Context())
	if err := s.Post(r.Context(), ev); err != nil {
		if errors.Is(err, session.ErrSessionClosed) {
			response.NotFound(w, r, "session not found")
			return
		}
		response.ServiceUnavailable(w, r, "session is busy")
		return
	}
	response.Accepted(w, r)
}

// Stream handles GET /v1/sessions/{sessionId}/stream. It patches the page's
// signals with the view state on connect and after every change.
func (h *SessionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sse := datastar.NewSSE(w, r)
	log := h.logger.With().Str("session_id", s.ID()).Logger()

	var last uint64
	send := func(first bool) bool {
		snap := s.Snapshot()
		if !first && snap.Version == last {
			return true
		}
		last = snap.Version
		// A connected viewer keeps its session alive.
		s.Touch()
		if err := sse.MarshalAndPatchSignals(Signals(snap)); err != nil {
			log.Debug().Err(err).Msg("stream closed")
			return false
		}
		return true
	}

	if !send(true) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.Done():
			return
		case <-updates:
			if !send(false) {
				return
			}
		}
	}
}

// Signals is the Datastar signal document for a snapshot. url is kept at the
// top level so the page can mirror it into history.replaceState.
func Signals(snap session.Snapshot) map[string]any {
	return map[string]any{
		"version":       snap.Version,
		"url":           snap.State.URL,
		"filtersActive": snap.State.Filters.Active(),
		"view":          snap.State,
	}
}

// Tile handles GET /v1/sessions/{sessionId}/tiles/{z}/{x}/{y}.mvt. Features
// hidden by the session's filters are removed. Tiles above the source's max
// zoom are 404 so the map overzooms the parent.
func (h *SessionHandler) Tile(w http.ResponseWriter, r *http.Request) {
	t, ok := tileParams(r)
	if !ok {
		response.BadRequest(w, r, "invalid tile coordinates", nil)
		return
	}

	s := middleware.GetSession(r.Context())
	s.Touch()
	st := s.Snapshot().State
	data, err := h.tiles.Render(r.Context(), t, st.Filters, st.MaxTileZoom)
	switch {
	case err == nil:
	case errors.Is(err, tiles.ErrEmpty), errors.Is(err, naturereserves.ErrTileNotFound):
		response.NoContent(w, r)
		return
	case errors.Is(err, tiles.ErrAboveMaxZoom):
		response.NotFound(w, r, "zoom above tile source maximum")
		return
	case errors.Is(err, tiles.ErrInvalidTile):
		response.BadRequest(w, r, "invalid tile coordinates", nil)
		return
	default:
		h.logger.Warn().Err(err).Msg("tile render failed")
		response.BadGateway(w, r, "tile source unavailable")
		return
	}

	w.Header().Set("Content-Type", TileContentType)
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func tileParams(r *http.Request) (maptile.Tile, bool) {
	z, errZ := strconv.ParseUint(chi.URLParam(r, "z"), 10, 32)
	x, errX := strconv.ParseUint(chi.URLParam(r, "x"), 10, 32)
	y, errY := strconv.ParseUint(chi.URLParam(r, "y"), 10, 32)
	if errZ != nil || errX != nil || errY != nil || z > uint64(viewport.MaxZoom) {
		return maptile.Tile{}, false
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), true
}

// Delete handles DELETE /v1/sessions/{sessionId}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, middleware.SessionParam)); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			response.NotFound(w, r, "session not found")
			return
		}
		response.InternalError(w, r, "failed to close session")
		return
	}
	response.NoContent(w, r)
}
