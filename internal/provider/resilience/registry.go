package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Health is the observed state of one backend client.
type Health struct {
	Name          string           `json:"name"`
	CircuitState  string           `json:"circuitState"`
	Counts        gobreaker.Counts `json:"-"`
	LastSuccessAt *time.Time       `json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time       `json:"lastFailureAt,omitempty"`
	LastError     string           `json:"lastError,omitempty"`

	state gobreaker.State
}

// IsHealthy reports whether the breaker is closed.
func (h *Health) IsHealthy() bool { return h.state == gobreaker.StateClosed }

// IsDegraded reports whether the breaker is half-open.
func (h *Health) IsDegraded() bool { return h.state == gobreaker.StateHalfOpen }

// Registry tracks clients and their latest outcomes.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*tracked
}

type tracked struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*tracked)}
}

// Register adds or replaces a client.
func (r *Registry) Register(name string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = &tracked{client: c}
}

// RecordSuccess records a successful call.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.clients[name]; ok {
		now := time.Now()
		t.lastSuccessAt = &now
	}
}

// RecordFailure records a failed call.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.clients[name]; ok {
		now := time.Now()
		t.lastFailureAt = &now
		if err != nil {
			t.lastError = err.Error()
		}
	}
}

// Health returns the health of one client, nil when unknown.
func (r *Registry) Health(name string) *Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.clients[name]
	if !ok {
		return nil
	}
	return t.health(name)
}

// All returns the health of every client sorted by name.
func (r *Registry) All() []*Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Health, 0, len(r.clients))
	for name, t := range r.clients {
		out = append(out, t.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t *tracked) health(name string) *Health {
	state := t.client.CircuitBreakerState()
	return &Health{
		Name:          name,
		CircuitState:  state.String(),
		Counts:        t.client.CircuitBreakerCounts(),
		LastSuccessAt: t.lastSuccessAt,
		LastFailureAt: t.lastFailureAt,
		LastError:     t.lastError,
		state:         state,
	}
}
