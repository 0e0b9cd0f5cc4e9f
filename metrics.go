package cnll

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/thalesfsp/cnll"

// Metrics holds the OpenTelemetry instruments of the package. A nil
// *Metrics records nothing.
type Metrics struct {
	CacheHits        metric.Int64Counter
	CacheMisses      metric.Int64Counter
	CrossingSearches metric.Int64Counter
	CrossingFailures metric.Int64Counter
	MinimizerCalls   metric.Int64Counter
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// NewMetrics creates the instruments from meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.CacheHits, err = meter.Int64Counter(
		"cnll.cache.hits",
		metric.WithDescription("Evaluations served from the values cache"),
	)
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter(
		"cnll.cache.misses",
		metric.WithDescription("Evaluations recomputed by a caching pdf"),
	)
	if err != nil {
		return nil, err
	}

	m.CrossingSearches, err = meter.Int64Counter(
		"cnll.crossing.searches",
		metric.WithDescription("Crossing searches started"),
	)
	if err != nil {
		return nil, err
	}

	m.CrossingFailures, err = meter.Int64Counter(
		"cnll.crossing.failures",
		metric.WithDescription("Crossing searches that returned NaN"),
	)
	if err != nil {
		return nil, err
	}

	m.MinimizerCalls, err = meter.Int64Counter(
		"cnll.minimizer.calls",
		metric.WithDescription("Minimizer invocations made by the crossing finder and fitter"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// DefaultMetrics returns instruments from the global meter provider, or nil
// if they cannot be created.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.Meter(instrumentationName))
		if err == nil {
			defaultMetrics = m
		}
	})

	return defaultMetrics
}

func (m *Metrics) cacheHit(pdf string) {
	if m == nil {
		return
	}

	m.CacheHits.Add(context.Background(), 1, metric.WithAttributes(attribute.String("pdf", pdf)))
}

func (m *Metrics) cacheMiss(pdf string) {
	if m == nil {
		return
	}

	m.CacheMisses.Add(context.Background(), 1, metric.WithAttributes(attribute.String("pdf", pdf)))
}

func (m *Metrics) crossingSearch(algo string) {
	if m == nil {
		return
	}

	m.CrossingSearches.Add(context.Background(), 1, metric.WithAttributes(attribute.String("algorithm", algo)))
}

func (m *Metrics) crossingFailure(algo string) {
	if m == nil {
		return
	}

	m.CrossingFailures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("algorithm", algo)))
}

func (m *Metrics) minimizerCall(kind string) {
	if m == nil {
		return
	}

	m.MinimizerCalls.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}
