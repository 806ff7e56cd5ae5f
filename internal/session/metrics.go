package session

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/reservemap/reservemap/internal/session"

// Metrics holds the session instruments.
type Metrics struct {
	events metric.Int64Counter
	stale  metric.Int64Counter
	active metric.Int64UpDownCounter
}

// NewMetrics creates session metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	events, err := meter.Int64Counter(
		"viewer.events.total",
		metric.WithDescription("Events applied to map views"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	stale, err := meter.Int64Counter(
		"viewer.results.stale",
		metric.WithDescription("Superseded results discarded by map views"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter(
		"viewer.sessions.active",
		metric.WithDescription("Open map view sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{events: events, stale: stale, active: active}, nil
}

func (m *Metrics) recordEvent(name string) {
	if m == nil {
		return
	}
	m.events.Add(context.Background(), 1, metric.WithAttributes(attribute.String("event", name)))
}

func (m *Metrics) recordStale(pipeline string) {
	if m == nil {
		return
	}
	m.stale.Add(context.Background(), 1, metric.WithAttributes(attribute.String("pipeline", pipeline)))
}

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.active.Add(context.Background(), 1)
}

func (m *Metrics) sessionClosed(reason string) {
	if m == nil {
		return
	}
	m.active.Add(context.Background(), -1, metric.WithAttributes(attribute.String("reason", reason)))
}
