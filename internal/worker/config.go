// Package worker runs background refresh jobs for the viewer.
package worker

import (
	"context"
	"time"
)

// RefreshTarget is one cached dataset kept warm by the refresh job.
type RefreshTarget struct {
	// Name identifies the target in logs and results.
	Name string

	// Refresh refetches the dataset.
	Refresh func(ctx context.Context) error

	// Priority determines refresh order (lower = higher priority).
	Priority int
}

// RefreshConfig holds configuration for the refresh job.
type RefreshConfig struct {
	// Targets are the datasets to refresh.
	Targets []RefreshTarget

	// Interval is the time between runs.
	// Default: 5 minutes
	Interval time.Duration

	// Concurrency is the number of concurrent refresh operations.
	// Default: 2
	Concurrency int

	// Timeout is the timeout for each refresh operation.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration without
// targets.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval:    5 * time.Minute,
		Concurrency: 2,
		Timeout:     30 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultRefreshConfig.
func (c RefreshConfig) withDefaults() RefreshConfig {
	def := DefaultRefreshConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}
