package cnll

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thalesfsp/cnll/model"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	return m, reader
}

// counterTotals sums every Int64 counter by instrument name.
func counterTotals(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := make(map[string]int64)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}

			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}

	return totals
}

func TestMetricsCache(t *testing.T) {
	m, reader := newTestMetrics(t)

	x := model.NewRealVar("x", 0, 0, 10)
	c := model.NewRealVar("c", -1, -5, 5)

	data := model.NewDataSet("d", x)
	data.Add(1, 1)

	cp := NewCachingPdf(model.NewExponential("e", x, c), []*model.RealVar{x}, WithPdfMetrics(m))
	cp.Eval(data)
	cp.Eval(data)
	cp.Eval(data)

	totals := counterTotals(t, reader)
	assert.Equal(t, int64(2), totals["cnll.cache.hits"])
	assert.Equal(t, int64(1), totals["cnll.cache.misses"])
}

func TestMetricsCrossing(t *testing.T) {
	m, reader := newTestMetrics(t)

	obj := newParabola(false)

	finder := newFinder(CrossingLegacy)
	finder.Metrics = m

	finder.FindCrossing(&stubMinimizer{fail: true, obj: obj}, obj, obj.x, 0.5, 1, 5)
	finder.FindCrossing(&stubMinimizer{obj: obj}, obj, obj.x, 0.5, 1, 5)

	totals := counterTotals(t, reader)
	assert.Equal(t, int64(2), totals["cnll.crossing.searches"])
	assert.Equal(t, int64(1), totals["cnll.crossing.failures"])
	assert.Greater(t, totals["cnll.minimizer.calls"], int64(2))
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.cacheHit("p")
		m.cacheMiss("p")
		m.crossingSearch("legacy")
		m.crossingFailure("legacy")
		m.minimizerCall("minimize")
	})

	assert.NotNil(t, DefaultMetrics())
	assert.Same(t, DefaultMetrics(), DefaultMetrics())
}
