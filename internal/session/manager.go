package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reservemap/reservemap/internal/mapview"
	"github.com/reservemap/reservemap/internal/viewport"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// Defaults for ManagerConfig.
const (
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultSweepInterval = time.Minute
)

// ManagerConfig holds configuration for a Manager.
type ManagerConfig struct {
	Backend mapview.Backend
	Tokens  *TokenService
	Logger  zerolog.Logger
	Metrics *Metrics

	IdleTimeout    time.Duration
	SweepInterval  time.Duration
	SearchDebounce time.Duration
	FitPadding     float64
	FitMaxZoom     int
	CommandTimeout time.Duration
}

// Created is a newly opened session with its access token.
type Created struct {
	Session   *Session
	Token     string
	ExpiresAt time.Time
}

// Manager owns the open sessions.
type Manager struct {
	cfg     ManagerConfig
	logger  zerolog.Logger
	metrics *Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	return &Manager{
		cfg:      cfg,
		logger:   cfg.Logger.With().Str("component", "sessions").Logger(),
		metrics:  cfg.Metrics,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session for the page at rawURL.
func (m *Manager) Create(rawURL string, size viewport.Size) (*Created, error) {
	id := uuid.NewString()

	token, expiresAt, err := m.cfg.Tokens.Issue(id)
	if err != nil {
		return nil, err
	}

	s := New(Config{
		ID:             id,
		URL:            rawURL,
		Size:           size,
		Backend:        m.cfg.Backend,
		Logger:         m.cfg.Logger,
		SearchDebounce: m.cfg.SearchDebounce,
		FitPadding:     m.cfg.FitPadding,
		FitMaxZoom:     m.cfg.FitMaxZoom,
		CommandTimeout: m.cfg.CommandTimeout,
		OnEvent:        m.metrics.recordEvent,
		OnStale:        m.metrics.recordStale,
	})

	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()
	m.metrics.sessionOpened()

	m.logger.Info().Str("session_id", id).Int("open", n).Msg("session created")
	return &Created{Session: s, Token: token, ExpiresAt: expiresAt}, nil
}

// Get returns the open session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Authorize validates token and returns the session it was issued for. The
// token must belong to id.
func (m *Manager) Authorize(id, token string) (*Session, error) {
	sid, err := m.cfg.Tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	if sid != id {
		return nil, ErrInvalidToken
	}
	return m.Get(id)
}

// Close stops and removes a session.
func (m *Manager) Close(id string) error {
	return m.close(id, "closed")
}

func (m *Manager) close(id, reason string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.Close()
	m.metrics.sessionClosed(reason)
	m.logger.Info().Str("session_id", id).Str("reason", reason).Msg("session closed")
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle since before now minus the idle timeout and
// returns how many were closed.
func (m *Manager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.cfg.IdleTimeout)

	var idle []string
	m.mu.RLock()
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	closed := 0
	for _, id := range idle {
		if m.close(id, "idle") == nil {
			closed++
		}
	}
	return closed
}

// Run sweeps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				m.logger.Info().Int("closed", n).Msg("idle sessions expired")
			}
		}
	}
}

// Shutdown closes every open session.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_ = m.close(id, "shutdown")
	}
}
