package naturereserves

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/reservemap/reservemap/internal/reserve"
)

// ErrBackendUnavailable is returned when the catalog cannot be loaded and no
// usable stale copy exists.
var ErrBackendUnavailable = errors.New("reserves backend unavailable")

// API is the subset of Client the service depends on.
type API interface {
	Operators(ctx context.Context) ([]reserve.Operator, error)
	Config(ctx context.Context) (reserve.BackendConfig, error)
	SearchReserves(ctx context.Context, query string, pageSize int) ([]reserve.Summary, error)
	ReservesAtPoint(ctx context.Context, lat, lon float64) ([]reserve.Summary, error)
	Reserve(ctx context.Context, id string) (*reserve.Detail, error)
	Tile(ctx context.Context, z, x, y uint32) ([]byte, error)
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	// API is the backend client. Required.
	API API

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long operators and config are each cached
	// (default: 10 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving a stale copy on backend errors
	// (default: 1 hour).
	StaleIfErrorTTL time.Duration

	// Metrics records cache hits and misses when set.
	Metrics *Metrics
}

// Catalog is the process-wide data every viewer needs at startup.
type Catalog struct {
	Operators []reserve.Operator
	Config    reserve.BackendConfig

	// FetchedAt is when the older of the two parts was fetched.
	FetchedAt time.Time
}

// Service fronts the backend for viewer sessions. Operators and config are
// shared by all sessions and cached separately, so one failing endpoint does
// not take the other down; per-view lookups pass straight through.
type Service struct {
	api API

	operators *cached[[]reserve.Operator]
	config    *cached[reserve.BackendConfig]
}

// NewService creates a new service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Minute
	}
	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = time.Hour
	}

	policy := cachePolicy{ttl: cacheTTL, staleIfError: staleIfErrorTTL, logger: cfg.Logger, metrics: cfg.Metrics}
	return &Service{
		api:       cfg.API,
		operators: &cached[[]reserve.Operator]{name: "operators", policy: policy, fetch: cfg.API.Operators},
		config:    &cached[reserve.BackendConfig]{name: "config", policy: policy, fetch: cfg.API.Config},
	}
}

// Catalog returns operators and config, refreshing each when expired. Both
// parts must be available.
func (s *Service) Catalog(ctx context.Context) (*Catalog, error) {
	return s.catalog(ctx, false)
}

// Refresh refetches operators and config even if the cached copies are still
// fresh. On backend errors a stale copy is kept and returned while within the
// stale-if-error window.
func (s *Service) Refresh(ctx context.Context) (*Catalog, error) {
	return s.catalog(ctx, true)
}

func (s *Service) catalog(ctx context.Context, force bool) (*Catalog, error) {
	ops, opsAt, opsErr := s.operators.get(ctx, force)
	cfg, cfgAt, cfgErr := s.config.get(ctx, force)
	if err := errors.Join(opsErr, cfgErr); err != nil {
		return nil, err
	}
	fetchedAt := opsAt
	if cfgAt.Before(fetchedAt) {
		fetchedAt = cfgAt
	}
	return &Catalog{Operators: ops, Config: cfg, FetchedAt: fetchedAt}, nil
}

// Ready reports whether the backend catalog can be served.
func (s *Service) Ready(ctx context.Context) error {
	_, err := s.Catalog(ctx)
	return err
}

// Operators returns the cached operator list.
func (s *Service) Operators(ctx context.Context) ([]reserve.Operator, error) {
	ops, _, err := s.operators.get(ctx, false)
	return ops, err
}

// Config returns the cached backend configuration.
func (s *Service) Config(ctx context.Context) (reserve.BackendConfig, error) {
	cfg, _, err := s.config.get(ctx, false)
	return cfg, err
}

type cachePolicy struct {
	ttl          time.Duration
	staleIfError time.Duration
	logger       zerolog.Logger
	metrics      *Metrics
}

// cached is one backend dataset with TTL and stale-if-error.
type cached[T any] struct {
	name   string
	policy cachePolicy
	fetch  func(ctx context.Context) (T, error)

	mu        sync.RWMutex
	value     T
	loaded    bool
	fetchedAt time.Time
	expiry    time.Time
}

func (c *cached[T]) get(ctx context.Context, force bool) (T, time.Time, error) {
	if !force {
		c.mu.RLock()
		if c.loaded && time.Now().Before(c.expiry) {
			v, at := c.value, c.fetchedAt
			c.mu.RUnlock()
			c.policy.metrics.recordCache(c.name, true)
			return v, at, nil
		}
		c.mu.RUnlock()
		c.policy.metrics.recordCache(c.name, false)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.loaded && time.Now().Before(c.expiry) {
		return c.value, c.fetchedAt, nil
	}

	c.policy.logger.Debug().Str("dataset", c.name).Msg("refreshing reserves catalog")

	v, err := c.fetch(ctx)
	if err == nil {
		c.value, c.loaded = v, true
		c.fetchedAt = time.Now()
		c.expiry = c.fetchedAt.Add(c.policy.ttl)
		return v, c.fetchedAt, nil
	}

	c.policy.logger.Error().Err(err).Str("dataset", c.name).Msg("failed to fetch reserves catalog")
	if c.loaded && time.Now().Before(c.fetchedAt.Add(c.policy.staleIfError)) {
		c.policy.logger.Warn().
			Str("dataset", c.name).
			Time("fetched_at", c.fetchedAt).
			Msg("serving stale reserves catalog due to backend error")
		return c.value, c.fetchedAt, nil
	}
	var zero T
	return zero, time.Time{}, errors.Join(ErrBackendUnavailable, err)
}

// SearchReserves searches reserves by name.
func (s *Service) SearchReserves(ctx context.Context, query string, pageSize int) ([]reserve.Summary, error) {
	return s.api.SearchReserves(ctx, query, pageSize)
}

// ReservesAtPoint returns the reserves containing a point.
func (s *Service) ReservesAtPoint(ctx context.Context, lat, lon float64) ([]reserve.Summary, error) {
	return s.api.ReservesAtPoint(ctx, lat, lon)
}

// Reserve returns the detail of one reserve.
func (s *Service) Reserve(ctx context.Context, id string) (*reserve.Detail, error) {
	return s.api.Reserve(ctx, id)
}

// Tile returns the raw vector tile at z/x/y.
func (s *Service) Tile(ctx context.Context, z, x, y uint32) ([]byte, error) {
	return s.api.Tile(ctx, z, x, y)
}
