package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RefreshJob refreshes cached datasets on an interval so sessions opening
// later find them warm.
type RefreshJob struct {
	config  RefreshConfig
	logger  zerolog.Logger
	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns         int64
	SuccessfulRefresh int64
	FailedRefreshes   int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config RefreshConfig
	Logger zerolog.Logger
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config.withDefaults()
	targets := append([]RefreshTarget(nil), config.Targets...)
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].Priority < targets[j].Priority })
	config.Targets = targets

	return &RefreshJob{
		config:  config,
		logger:  cfg.Logger,
		metrics: &RefreshMetrics{},
	}
}

// RefreshResult contains the result of one run.
type RefreshResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Successful int
	Failed     int
	Errors     []RefreshError
}

// RefreshError is a failed target refresh.
type RefreshError struct {
	Target string
	Error  string
}

// Start runs the job immediately and then every Interval until ctx is done.
func (j *RefreshJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

// Run refreshes every target once.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{StartTime: startTime}

	j.logger.Debug().
		Int("targets", len(j.config.Targets)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting refresh job")

	targets := make(chan RefreshTarget, len(j.config.Targets))
	results := make(chan targetResult, len(j.config.Targets))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, targets, results)
		}()
	}

	for _, t := range j.config.Targets {
		targets <- t
	}
	close(targets)

	go func() {
		wg.Wait()
		close(results)
	}()

	for tr := range results {
		if tr.err == nil {
			result.Successful++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, RefreshError{Target: tr.name, Error: tr.err.Error()})
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	j.updateMetrics(result)

	ev := j.logger.Info()
	if result.Failed > 0 {
		ev = j.logger.Warn()
	}
	ev.Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("refresh job completed")

	return result
}

type targetResult struct {
	name string
	err  error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, targets <-chan RefreshTarget, results chan<- targetResult) {
	for t := range targets {
		if err := ctx.Err(); err != nil {
			results <- targetResult{name: t.Name, err: err}
			continue
		}
		results <- targetResult{name: t.Name, err: j.refreshTarget(ctx, t)}
	}
}

func (j *RefreshJob) refreshTarget(ctx context.Context, t RefreshTarget) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	if err := t.Refresh(ctx); err != nil {
		j.logger.Error().Err(err).Str("target", t.Name).Msg("refresh failed")
		return err
	}
	return nil
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulRefresh += int64(result.Successful)
	j.metrics.FailedRefreshes += int64(result.Failed)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:           j.metrics.TotalRuns,
		SuccessfulRefresh:   j.metrics.SuccessfulRefresh,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_runs":            m.TotalRuns,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
