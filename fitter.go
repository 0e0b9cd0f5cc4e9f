package cnll

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/thalesfsp/cnll/model"
	"gonum.org/v1/gonum/stat/distuv"
)

// Confidence levels of the reported intervals.
const (
	CL68 = 0.68
	CL95 = 0.95
)

// POIInterval is the outcome of the interval search for one parameter of
// interest. Bounds that could not be found are set to Best.
type POIInterval struct {
	Name string
	Best float64
	Lo68 float64
	Hi68 float64
	Lo95 float64
	Hi95 float64

	// Found68 and Found95 report whether both bounds were found.
	Found68 bool
	Found95 bool
}

// FitOutcome is what DoFit returns.
type FitOutcome struct {
	Result *model.FitResult

	// NLL0 is the objective before the fit, NLL the change the fit made.
	// Both are zero unless FitOptions.SaveNLL is set.
	NLL0 float64
	NLL  float64

	Delta68 float64
	Delta95 float64

	Intervals []POIInterval
}

// Fitter runs a fit and the interval search of its parameters of interest.
type Fitter struct {
	Crossing *CrossingFinder
	Logger   *slog.Logger
	Metrics  *Metrics
}

//////
// Factory.
//////

// NewFitter creates a fitter using cfg for the crossing searches.
func NewFitter(cfg Config, logger *slog.Logger, level *slog.LevelVar) *Fitter {
	cf := NewCrossingFinder(cfg.Crossing)
	cf.Logger = logger
	cf.Level = level

	return &Fitter{Crossing: cf, Logger: logger}
}

//////
// Exported functionalities.
//////

// DeltaNLL returns half the chi-square quantile at cl for ndim degrees of
// freedom: the rise of the objective bounding a confidence region.
func DeltaNLL(cl float64, ndim int) float64 {
	if ndim < 1 {
		ndim = 1
	}

	return 0.5 * distuv.ChiSquared{K: float64(ndim)}.Quantile(cl)
}

// DoFit minimises nll and, for each parameter of interest, finds its 68%
// (and with Do95 its 95%) interval, with Minos or with the crossing finder
// when opts.Robust is set. Parameters selected by opts.Profiling are frozen
// during the interval search. Every parameter is left at the best fit.
//
// Parameters:
// - nll: The combined likelihood
// - minim: A minimizer over nll
// - pois: Parameters of interest
// - nuisances: The other parameters, used by the profiling modes
// - opts: Fit options
//
// Returns:
// - *FitOutcome: The fit result and the intervals
// - error: ErrMinimizationFailed when the initial fit fails and
//   KeepFailures is not set
func (f *Fitter) DoFit(nll *SimNLL, minim Minimizer, pois, nuisances []*model.RealVar, opts FitOptions) (*FitOutcome, error) {
	logger := orDefault(f.Logger)

	metrics := f.Metrics
	if metrics == nil {
		metrics = DefaultMetrics()
	}

	crossing := f.Crossing
	if crossing == nil {
		crossing = NewCrossingFinder(DefaultConfig().Crossing)
	}

	out := &FitOutcome{
		Delta68: DeltaNLL(CL68, opts.NDim),
		Delta95: DeltaNLL(CL95, opts.NDim),
	}

	nll0 := nll.Evaluate()

	minim.SetErrorLevel(out.Delta68)
	metrics.minimizerCall("minimize")

	ok := minim.Minimize(opts.Verbosity)

	if opts.SaveNLL {
		out.NLL0 = nll0
		out.NLL = nll.Evaluate() - nll0
	}

	if !ok && !opts.KeepFailures {
		logger.Error("initial minimization failed")

		return nil, ErrMinimizationFailed
	}

	if opts.DoHesse {
		metrics.minimizerCall("hesse")

		if !minim.Hesse() {
			logger.Warn("hesse failed")
		}
	}

	out.Result = minim.Save()

	allPars := model.UniqueVars(nll.Parameters(), pois)
	bestFit := model.TakeSnapshot(allPars)

	defer bestFit.Restore()

	for i, r := range pois {
		if i > 0 {
			out.Result.FloatParsFinal.Restore()
			out.Result.ConstPars.Restore()
		}

		if _, found := out.Result.Find(r.Name()); !found {
			logger.Warn("skipping parameter not in fit result", slog.String("param", r.Name()))

			continue
		}

		unfreeze := freeze(f.frozen(nll, r, pois, nuisances, opts.Profiling))

		var iv POIInterval
		if opts.Robust {
			iv = f.robustInterval(crossing, nll, minim, r, out, opts)
		} else {
			iv = f.minosInterval(minim, r, out, opts, metrics)
		}

		unfreeze()

		out.Intervals = append(out.Intervals, iv)

		logger.Info("interval",
			slog.String("param", iv.Name),
			slog.Float64("best", iv.Best),
			slog.Float64("lo68", iv.Lo68),
			slog.Float64("hi68", iv.Hi68),
		)
	}

	return out, nil
}

// robustInterval scans r upwards then downwards from the best fit.
func (f *Fitter) robustInterval(cf *CrossingFinder, nll *SimNLL, minim Minimizer, r *model.RealVar, out *FitOutcome, opts FitOptions) POIInterval {
	r0, rMin, rMax := r.Val(), r.Min(), r.Max()

	defer restoreConstant(r)()
	r.SetConstant(true)

	level0 := nll.Evaluate()
	threshold68 := level0 + out.Delta68
	threshold95 := level0 + out.Delta95

	hi68 := cf.FindCrossing(minim, nll, r, threshold68, r0, rMax)

	hi95 := math.NaN()
	if opts.Do95 {
		hi95 = cf.FindCrossing(minim, nll, r, threshold95, orElse(hi68, r0), rMax)
	}

	out.Result.FloatParsFinal.Restore()
	r.SetVal(r0)

	lo68 := cf.FindCrossing(minim, nll, r, threshold68, r0, rMin)

	lo95 := math.NaN()
	if opts.Do95 {
		lo95 = cf.FindCrossing(minim, nll, r, threshold95, orElse(lo68, r0), rMin)
	}

	r.SetAsymError(orElse(lo68-r0, 0), orElse(hi68-r0, 0))
	r.SetVal(r0)

	return POIInterval{
		Name:    r.Name(),
		Best:    r0,
		Lo68:    orElse(lo68, r0),
		Hi68:    orElse(hi68, r0),
		Lo95:    orElse(lo95, r0),
		Hi95:    orElse(hi95, r0),
		Found68: !math.IsNaN(lo68) && !math.IsNaN(hi68),
		Found95: opts.Do95 && !math.IsNaN(lo95) && !math.IsNaN(hi95),
	}
}

// minosInterval reads the interval from the minimizer's own profile scan.
func (f *Fitter) minosInterval(minim Minimizer, r *model.RealVar, out *FitOutcome, opts FitOptions, metrics *Metrics) POIInterval {
	r0 := r.Val()
	iv := POIInterval{Name: r.Name(), Best: r0, Lo68: r0, Hi68: r0, Lo95: r0, Hi95: r0}

	if opts.Do95 {
		minim.SetErrorLevel(out.Delta95)
		metrics.minimizerCall("minos")

		if minim.Minos([]*model.RealVar{r}) {
			iv.Lo95 = r0 + r.AsymErrorLo()
			iv.Hi95 = r0 + r.AsymErrorHi()
			iv.Found95 = true
		}

		minim.SetErrorLevel(out.Delta68)
		r.SetVal(r0)
	}

	metrics.minimizerCall("minos")

	if minim.Minos([]*model.RealVar{r}) {
		iv.Lo68 = r0 + r.AsymErrorLo()
		iv.Hi68 = r0 + r.AsymErrorHi()
		iv.Found68 = true
	}

	r.SetVal(r0)

	return iv
}

// frozen returns the parameters held constant while scanning r.
func (f *Fitter) frozen(nll *SimNLL, r *model.RealVar, pois, nuisances []*model.RealVar, mode ProfilingMode) []*model.RealVar {
	switch mode {
	case ProfileUnconstrained:
		var constrained [][]*model.RealVar
		for _, t := range nll.ConstraintTerms() {
			constrained = append(constrained, t.Parameters())
		}

		set := varSet(model.UniqueVars(constrained...))

		var out []*model.RealVar

		for _, v := range nuisances {
			if _, ok := set[v]; ok {
				out = append(out, v)
			}
		}

		return out
	case ProfilePOI:
		return nuisances
	case ProfileNone:
		return model.WithoutVars(model.UniqueVars(nuisances, pois), []*model.RealVar{r})
	default:
		return nil
	}
}

// freeze sets the floating vars constant and returns the func releasing
// them.
func freeze(vars []*model.RealVar) func() {
	var changed []*model.RealVar

	for _, v := range vars {
		if !v.IsConstant() {
			v.SetConstant(true)
			changed = append(changed, v)
		}
	}

	return func() { model.SetAllConstant(changed, false) }
}

func orElse(x, fallback float64) float64 {
	if math.IsNaN(x) {
		return fallback
	}

	return x
}

// String implements fmt.Stringer.
func (iv POIInterval) String() string {
	return fmt.Sprintf("%s = %g -%g/+%g (68%%)", iv.Name, iv.Best, iv.Best-iv.Lo68, iv.Hi68-iv.Best)
}
