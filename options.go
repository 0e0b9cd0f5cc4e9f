package cnll

import "log/slog"

// Option configures AddNLL and SimNLL construction.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	metrics     *Metrics
	runtime     RuntimeConfig
	includeZero bool
	analyticBB  bool
}

func newOptions(opts []Option) options {
	o := options{metrics: DefaultMetrics()}

	for _, opt := range opts {
		opt(&o)
	}

	o.logger = orDefault(o.logger)

	return o
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the instruments. nil disables metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRuntime sets the runtime toggles.
func WithRuntime(rt RuntimeConfig) Option {
	return func(o *options) { o.runtime = rt }
}

// WithIncludeZeroWeights keeps zero-weight entries from the start.
func WithIncludeZeroWeights(include bool) Option {
	return func(o *options) { o.includeZero = include }
}

// WithAnalyticBarlowBeeston profiles bin-statistics scale factors
// analytically from the start.
func WithAnalyticBarlowBeeston(on bool) Option {
	return func(o *options) { o.analyticBB = on }
}
