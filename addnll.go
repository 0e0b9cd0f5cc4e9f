package cnll

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/thalesfsp/cnll/model"
	"gonum.org/v1/gonum/floats"
)

// AddNLL is the negative log-likelihood of one channel: a sum of
// components evaluated over a dataset.
//
// Two forms are supported:
//   - model.SumOfPdfs: density = Σ c f / I, normalisation Σ c
//   - model.RealSum: density = Σ c f · binWidth, normalisation Σ c I
//
// The raw value is -Σ w log(density/norm), plus N - W log N when extended.
// Evaluate subtracts the zero point and adds the constant zero point fixed
// at construction.
//
// Not safe for concurrent use.
type AddNLL struct {
	name string
	ch   *model.Channel
	data model.Data

	pdfs      []*CachingPdf
	integrals []*integral

	entries    []int
	weights    []float64
	widths     []float64
	sumWeights float64

	zeroPoint         float64
	constantZeroPoint float64

	includeZero       bool
	includeZeroPolicy bool
	analyticBB        bool
	gammas            []*model.RealVar

	evalErrors int

	logger  *slog.Logger
	metrics *Metrics

	// scratch
	coefs []float64
	norms []float64
}

// NewAddNLL builds the likelihood of ch over data.
//
// Parameters:
// - name: Identifies the channel in logs
// - ch: The channel model, which must have at least one component
// - data: The channel dataset
// - opts: Logger, metrics, runtime and zero-weight options
//
// Returns:
// - *AddNLL: The channel likelihood, with its constant zero point set
// - error: ErrNoComponents, ErrNilData, ErrBinStats or an integration error
func NewAddNLL(name string, ch *model.Channel, data model.Data, opts ...Option) (*AddNLL, error) {
	if ch == nil || len(ch.Components) == 0 {
		return nil, fmt.Errorf("channel %q: %w", name, ErrNoComponents)
	}

	if data == nil {
		return nil, fmt.Errorf("channel %q: %w", name, ErrNilData)
	}

	if len(ch.BinStats) > 0 && (ch.Form != model.RealSum || !ch.Extended) {
		return nil, fmt.Errorf("channel %q: %w", name, ErrBinStats)
	}

	o := newOptions(opts)

	a := &AddNLL{
		name:              name,
		ch:                ch,
		includeZeroPolicy: o.includeZero,
		logger:            o.logger.With(slog.String("channel", name)),
		metrics:           o.metrics,
		coefs:             make([]float64, len(ch.Components)),
		norms:             make([]float64, len(ch.Components)),
	}

	for _, bs := range ch.BinStats {
		a.gammas = append(a.gammas, bs.Gamma)
	}

	for _, comp := range ch.Components {
		cp := NewCachingPdf(comp.Pdf, ch.Observables,
			WithPdfMetrics(o.metrics),
			WithCacheSize(o.runtime.CacheSize),
		)
		if o.runtime.DirectMode {
			cp.SetDirectMode(true)
		}

		in, err := newIntegral(comp.Pdf, ch.Observables)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", name, err)
		}

		a.pdfs = append(a.pdfs, cp)
		a.integrals = append(a.integrals, in)
	}

	if err := a.SetData(data); err != nil {
		return nil, err
	}

	a.SetAnalyticBarlowBeeston(o.analyticBB)

	if raw0 := a.raw(); !isBad(raw0) {
		a.constantZeroPoint = -math.Round(raw0)
	}

	a.logger.Debug("channel likelihood ready",
		slog.String("form", ch.Form.String()),
		slog.Int("components", len(ch.Components)),
		slog.Int("entries", len(a.entries)),
		slog.Bool("analyticIntegrals", a.AnalyticIntegrals()),
	)

	return a, nil
}

//////
// Evaluation.
//////

// Evaluate returns raw - (zeroPoint - constantZeroPoint).
func (a *AddNLL) Evaluate() float64 {
	return a.raw() - (a.zeroPoint - a.constantZeroPoint)
}

// raw computes the likelihood without offsets.
func (a *AddNLL) raw() float64 {
	var (
		realSum = a.ch.Form == model.RealSum
		norm    float64
	)

	for k, comp := range a.ch.Components {
		c := 1.0
		if comp.Coef != nil {
			c = comp.Coef.Value()
		}

		a.coefs[k] = c

		in := a.integrals[k].Value()
		a.norms[k] = in

		if realSum {
			norm += c * in
		} else {
			norm += c
		}
	}

	vals := make([][]float64, len(a.pdfs))
	for k, cp := range a.pdfs {
		vals[k] = cp.Eval(a.data)
	}

	if len(a.ch.BinStats) > 0 {
		return a.rawBinStats(vals)
	}

	var sum float64

	for j := range a.entries {
		w := a.weights[j]
		if w == 0 {
			continue
		}

		var density float64

		for k := range a.pdfs {
			if realSum {
				density += a.coefs[k] * vals[k][j] * a.widths[j]
			} else {
				density += a.coefs[k] * vals[k][j] / a.norms[k]
			}
		}

		if !(density > 0) {
			a.logEvalError("non-positive density", a.entries[j], density)
		}

		sum -= w * math.Log(density)
	}

	if a.sumWeights != 0 {
		sum += a.sumWeights * math.Log(norm)
	}

	if a.ch.Extended {
		sum += norm
		if a.sumWeights != 0 {
			sum -= a.sumWeights * math.Log(norm)
		}
	}

	if !(norm > 0) {
		a.logEvalError("non-positive normalisation", -1, norm)
	}

	return sum
}

// rawBinStats evaluates an extended template sum whose bins are scaled by
// per-bin factors. Every bin is retained.
func (a *AddNLL) rawBinStats(vals [][]float64) float64 {
	var sum float64

	for j, i := range a.entries {
		var nu float64
		for k := range a.pdfs {
			nu += a.coefs[k] * vals[k][j] * a.widths[j]
		}

		bs := a.ch.BinStats[i]
		n := a.weights[j]

		if a.analyticBB && bs.RelErr > 0 {
			bs.Gamma.SetVal(bbGamma(nu, n, bs.RelErr))
			sum += sq(bs.Gamma.Val()-1) / (2 * sq(bs.RelErr))
		}

		mu := bs.Gamma.Val() * nu
		if !(mu > 0) {
			if n == 0 && mu == 0 {
				continue
			}

			a.logEvalError("non-positive bin expectation", i, mu)
		}

		sum += mu
		if n != 0 {
			sum -= n * math.Log(mu)
		}
	}

	return sum
}

// bbGamma returns the positive root of γ² + (νe² - 1)γ - n e² = 0.
func bbGamma(nu, n, relErr float64) float64 {
	e2 := relErr * relErr
	b := nu*e2 - 1

	return 0.5 * (-b + math.Sqrt(b*b+4*n*e2))
}

func (a *AddNLL) logEvalError(msg string, entry int, value float64) {
	a.evalErrors++

	if a.evalErrors == 1 {
		a.logger.Debug(msg, slog.Int("entry", entry), slog.Float64("value", value))
	}
}

//////
// Data.
//////

// SetData swaps the dataset, pushes the recorded zero-weight policy to the
// evaluators and recomputes weights and bin widths.
func (a *AddNLL) SetData(data model.Data) error {
	if data == nil {
		return fmt.Errorf("channel %q: %w", a.name, ErrNilData)
	}

	if len(a.ch.BinStats) > 0 && len(a.ch.BinStats) != data.NumEntries() {
		return fmt.Errorf("channel %q: %d bins, %d entries: %w",
			a.name, len(a.ch.BinStats), data.NumEntries(), ErrBinStats)
	}

	a.data = data
	a.includeZero = a.includeZeroPolicy || len(a.ch.BinStats) > 0

	for _, cp := range a.pdfs {
		cp.SetIncludeZeroWeights(a.includeZero)
	}

	binned, _ := data.(model.Binned)

	a.entries = a.entries[:0]
	a.weights = a.weights[:0]
	a.widths = a.widths[:0]

	for i, n := 0, data.NumEntries(); i < n; i++ {
		w := data.Weight(i)
		if w == 0 && !a.includeZero {
			continue
		}

		width := 1.0
		if binned != nil {
			width = binned.BinWidth(i)
		}

		a.entries = append(a.entries, i)
		a.weights = append(a.weights, w)
		a.widths = append(a.widths, width)
	}

	a.sumWeights = floats.Sum(a.weights)

	return nil
}

// PropagateData pushes the current dataset again.
func (a *AddNLL) PropagateData() error { return a.SetData(a.data) }

// SetDataDirty forces every evaluator to rebuild its entry mask.
func (a *AddNLL) SetDataDirty() {
	for _, cp := range a.pdfs {
		cp.SetDataDirty()
	}
}

// SetIncludeZeroWeights records the zero-weight policy. It takes effect at
// the next SetData.
func (a *AddNLL) SetIncludeZeroWeights(include bool) { a.includeZeroPolicy = include }

// SetAnalyticBarlowBeeston switches analytic profiling of the bin-statistics
// scale factors. It has no effect on channels without bin statistics.
func (a *AddNLL) SetAnalyticBarlowBeeston(on bool) {
	if len(a.ch.BinStats) == 0 {
		return
	}

	a.analyticBB = on

	for _, g := range a.gammas {
		g.SetAnalytic(on)
	}
}

//////
// Zero points.
//////

// SetZeroPoint shifts the value so that the current point evaluates to 0.
func (a *AddNLL) SetZeroPoint() { a.zeroPoint += a.Evaluate() }

// ClearZeroPoint removes the zero point.
func (a *AddNLL) ClearZeroPoint() { a.zeroPoint = 0 }

// UpdateZeroPoint is ClearZeroPoint followed by SetZeroPoint.
func (a *AddNLL) UpdateZeroPoint() {
	a.ClearZeroPoint()
	a.SetZeroPoint()
}

// ClearConstantZeroPoint removes the offset fixed at construction.
func (a *AddNLL) ClearConstantZeroPoint() { a.constantZeroPoint = 0 }

// ZeroPoint returns the current zero point.
func (a *AddNLL) ZeroPoint() float64 { return a.zeroPoint }

// ConstantZeroPoint returns the offset fixed at construction.
func (a *AddNLL) ConstantZeroPoint() float64 { return a.constantZeroPoint }

//////
// Accessors.
//////

// Name returns the channel name.
func (a *AddNLL) Name() string { return a.name }

// Channel returns the channel model.
func (a *AddNLL) Channel() *model.Channel { return a.ch }

// Data returns the current dataset.
func (a *AddNLL) Data() model.Data { return a.data }

// SumWeights returns the sum of the retained entry weights.
func (a *AddNLL) SumWeights() float64 { return a.sumWeights }

// NumEvalErrors returns the number of evaluation errors since the last
// ClearEvalErrors.
func (a *AddNLL) NumEvalErrors() int { return a.evalErrors }

// ClearEvalErrors resets the evaluation-error log.
func (a *AddNLL) ClearEvalErrors() { a.evalErrors = 0 }

// AnalyticIntegrals reports whether every component integrates in closed
// form at the current state.
func (a *AddNLL) AnalyticIntegrals() bool {
	for _, in := range a.integrals {
		if !in.analytic() {
			return false
		}
	}

	return true
}

// Parameters returns the variables the value depends on, observables
// excluded. Analytically profiled scale factors are not reported.
func (a *AddNLL) Parameters() []*model.RealVar {
	groups := make([][]*model.RealVar, 0, 2*len(a.ch.Components)+1)

	for _, comp := range a.ch.Components {
		groups = append(groups, comp.Pdf.Parameters())
		if comp.Coef != nil {
			groups = append(groups, comp.Coef.Parameters())
		}
	}

	if !a.analyticBB {
		groups = append(groups, a.gammas)
	}

	return model.WithoutVars(model.UniqueVars(groups...), a.ch.Observables)
}

// Categories returns the categories the value depends on.
func (a *AddNLL) Categories() []*model.Category {
	groups := make([][]*model.Category, 0, len(a.ch.Components))
	for _, comp := range a.ch.Components {
		groups = append(groups, comp.Pdf.Categories())
	}

	return model.UniqueCategories(groups...)
}

// CacheStats returns the summed cache counters of the evaluators.
func (a *AddNLL) CacheStats() ValuesCacheStats {
	var s ValuesCacheStats

	for _, cp := range a.pdfs {
		cs := cp.Stats()
		s.Hits += cs.Hits
		s.Misses += cs.Misses
		s.Evictions += cs.Evictions
	}

	return s
}
