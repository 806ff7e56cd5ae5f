package naturereserves

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/reservemap/reservemap/internal/naturereserves"

// Metrics holds the instruments for backend calls and the catalog cache.
type Metrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHit        metric.Int64Counter
	cacheMiss       metric.Int64Counter
}

// NewMetrics creates backend metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"backend.request.duration",
		metric.WithDescription("Duration of reserves backend requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"backend.request.total",
		metric.WithDescription("Total number of reserves backend requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHit, err := meter.Int64Counter(
		"backend.cache.hit",
		metric.WithDescription("Catalog cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMiss, err := meter.Int64Counter(
		"backend.cache.miss",
		metric.WithDescription("Catalog cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHit:        cacheHit,
		cacheMiss:       cacheMiss,
	}, nil
}

// RecordRequest records one backend call.
func (m *Metrics) RecordRequest(operation string, d time.Duration, err error) {
	attrs := []attribute.KeyValue{attribute.String("backend.operation", operation)}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrTileNotFound) {
			attrs = append(attrs, attribute.Bool("not_found", true))
		}
	}

	// Background context so a cancelled request is still counted.
	ctx := context.Background()
	m.requestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) recordCache(operation string, hit bool) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(attribute.String("backend.operation", operation))
	if hit {
		m.cacheHit.Add(context.Background(), 1, opt)
		return
	}
	m.cacheMiss.Add(context.Background(), 1, opt)
}
