package models

// Health is the liveness document.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// Readiness reports whether the viewer can serve map sessions.
type Readiness struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Sessions  int              `json:"sessions"`
	Providers []ProviderStatus `json:"providers"`
	Message   string           `json:"message,omitempty"`
}

// ProviderStatus is the state of one upstream the viewer calls.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
