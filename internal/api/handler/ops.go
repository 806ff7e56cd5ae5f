// Package handler provides HTTP handlers for the viewer API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/reservemap/reservemap/internal/api/models"
	"github.com/reservemap/reservemap/internal/api/response"
	"github.com/reservemap/reservemap/internal/provider/resilience"
)

// readyTimeout bounds the backend readiness check.
const readyTimeout = 3 * time.Second

// ReadyChecker reports whether the reserves backend can serve a catalog.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// SessionCounter reports the number of open sessions.
type SessionCounter interface {
	Len() int
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	backend   ReadyChecker
	registry  *resilience.Registry
	sessions  SessionCounter
}

// OpsConfig holds OpsHandler dependencies. Nil fields are skipped.
type OpsConfig struct {
	Version   string
	BuildTime string
	Backend   ReadyChecker
	Registry  *resilience.Registry
	Sessions  SessionCounter
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		backend:   cfg.Backend,
		registry:  cfg.Registry,
		sessions:  cfg.Sessions,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The viewer is
// ready once the catalog loads; an open breaker only degrades it.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ready := models.Readiness{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Providers: h.providers(),
	}
	if h.sessions != nil {
		ready.Sessions = h.sessions.Len()
	}
	for _, p := range ready.Providers {
		if p.Status != models.HealthStatusOK {
			ready.Status = models.HealthStatusDegraded
		}
	}

	if h.backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := h.backend.Ready(ctx); err != nil {
			ready.Status = models.HealthStatusFail
			ready.Message = "reserve catalog unavailable: " + err.Error()
			response.JSON(w, r, http.StatusServiceUnavailable, ready)
			return
		}
	}
	response.JSON(w, r, http.StatusOK, ready)
}

func (h *OpsHandler) providers() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}
	all := h.registry.All()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, hl := range all {
		ps := models.ProviderStatus{
			Provider:      hl.Name,
			Status:        models.HealthStatusOK,
			CircuitState:  hl.CircuitState,
			LastSuccessAt: timestampPtr(hl.LastSuccessAt),
			LastFailureAt: timestampPtr(hl.LastFailureAt),
		}
		switch {
		case hl.IsDegraded():
			ps.Status = models.HealthStatusDegraded
		case !hl.IsHealthy():
			ps.Status = models.HealthStatusFail
		}
		if hl.LastError != "" {
			msg := hl.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}

func timestampPtr(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	ts := models.Timestamp(*t)
	return &ts
}
