package cnll

import (
	"log/slog"
	"math"

	"github.com/thalesfsp/cnll/model"
)

// CrossingStrategy locates the point where a profiled objective reaches a
// level, scanning a parameter from a start towards a bound.
type CrossingStrategy interface {
	Name() CrossingAlgorithm
	Search(s *search) float64
}

// CrossingFinder finds where a profiled objective crosses a level.
//
// Fields:
// - Config: Search parameters, see DefaultConfig().Crossing
// - Logger: Diagnostics sink, slog.Default() when nil
// - Level: Level variable of Logger; raised for the duration of a search
//   when Config.Quiet is set
// - Metrics: Instruments, DefaultMetrics() when nil
// - ProgressChan: Optional, receives updates without blocking
// - Verbosity: Passed to the minimizer, minus one
//
// Thread safety:
// - A finder may be reused but not shared between concurrent searches: a
//   search mutates the objective parameters and the minimizer settings.
type CrossingFinder struct {
	Config       CrossingConfig
	Logger       *slog.Logger
	Level        *slog.LevelVar
	Metrics      *Metrics
	ProgressChan chan<- ProgressUpdate
	Verbosity    int
}

// search is the transient state shared by both strategies.
type search struct {
	minim    Minimizer
	nll      Objective
	r        *model.RealVar
	level    float64
	rStart   float64
	rBound   float64
	cfg      CrossingConfig
	logger   *slog.Logger
	metrics  *Metrics
	progress chan<- ProgressUpdate
	verbose  int
}

// minimizerSentry applies search settings to a minimizer and restores the
// previous ones.
type minimizerSentry struct {
	m        Minimizer
	algo     string
	tol      float64
	strategy int
}

//////
// Factory.
//////

// NewCrossingFinder creates a finder with the given configuration.
func NewCrossingFinder(cfg CrossingConfig) *CrossingFinder {
	return &CrossingFinder{Config: cfg}
}

//////
// Exported functionalities.
//////

// FindCrossing scans r from rStart towards rBound and returns the value at
// which the objective, profiled over the other floating parameters, reaches
// level. It returns NaN when no crossing is found; the new strategy may
// instead return its last point, see CrossingConfig.ReturnApproximate.
//
// Parameters:
// - minim: Minimizer over nll, reconfigured for the duration of the call
// - nll: The objective; its parameters are restored on return
// - r: The scanned parameter; held constant during the search
// - level: Target objective value
// - rStart: Start of the scan, normally the best fit
// - rBound: End of the scan
//
// Returns:
// - float64: The crossing, inside [rStart, rBound] in either order, or NaN
//
// Usage example:
//
//	finder := cnll.NewCrossingFinder(cnll.DefaultConfig().Crossing)
//
//	hi := finder.FindCrossing(minim, nll, mu, nllMin+0.5, muHat, mu.Max())
//	lo := finder.FindCrossing(minim, nll, mu, nllMin+0.5, muHat, mu.Min())
func (f *CrossingFinder) FindCrossing(minim Minimizer, nll Objective, r *model.RealVar, level, rStart, rBound float64) float64 {
	strategy := f.strategy()
	logger := orDefault(f.Logger).With(
		slog.String("param", r.Name()),
		slog.String("algorithm", string(strategy.Name())),
	)

	metrics := f.Metrics
	if metrics == nil {
		metrics = DefaultMetrics()
	}

	metrics.crossingSearch(string(strategy.Name()))

	sentry := newMinimizerSentry(minim, f.Config.MinimizerAlgorithm, f.Config.MinimizerTolerance, f.Config.MinimizerStrategy, logger)
	defer sentry.restore()

	snapshot := model.TakeSnapshot(model.UniqueVars(nll.Parameters(), []*model.RealVar{r}))
	defer snapshot.Restore()

	defer restoreConstant(r)()
	r.SetConstant(true)

	logger.Info("searching for crossing",
		slog.Float64("level", level),
		slog.Float64("start", rStart),
		slog.Float64("bound", rBound),
	)

	unquiet := quietScope(f.Level, f.Config.Quiet)
	defer unquiet()

	s := &search{
		minim:    minim,
		nll:      nll,
		r:        r,
		level:    level,
		rStart:   rStart,
		rBound:   rBound,
		cfg:      f.Config,
		logger:   logger,
		metrics:  metrics,
		progress: f.ProgressChan,
		verbose:  f.Verbosity,
	}

	x := strategy.Search(s)

	unquiet()

	if math.IsNaN(x) {
		metrics.crossingFailure(string(strategy.Name()))
		logger.Warn("no crossing found", slog.Float64("level", level))

		return x
	}

	x = NewInterval(rStart, rBound).Clamp(x)
	s.report("converge", -1, x, math.NaN(), 0)

	return x
}

// strategy resolves the configured algorithm once per call.
func (f *CrossingFinder) strategy() CrossingStrategy {
	if f.Config.Algorithm == CrossingNew {
		return newCrossing{}
	}

	return legacyCrossing{}
}

//////
// Helper functions.
//////

func newMinimizerSentry(m Minimizer, algo string, tol float64, strategy int, logger *slog.Logger) *minimizerSentry {
	s := &minimizerSentry{
		m:        m,
		algo:     m.Algorithm(),
		tol:      m.Tolerance(),
		strategy: m.Strategy(),
	}

	if algo != "" {
		if err := m.SetAlgorithm(algo); err != nil {
			logger.Warn("keeping minimizer algorithm", slog.String("requested", algo), slog.Any("error", err))
		}
	}

	if tol > 0 {
		m.SetTolerance(tol)
	}

	m.SetStrategy(strategy)

	return s
}

func (s *minimizerSentry) restore() {
	_ = s.m.SetAlgorithm(s.algo)
	s.m.SetTolerance(s.tol)
	s.m.SetStrategy(s.strategy)
}

func (s *search) minimize() bool {
	s.metrics.minimizerCall("minimize")

	return s.minim.Minimize(s.verbose - 1)
}

func (s *search) improve() bool {
	s.metrics.minimizerCall("improve")

	return s.minim.Improve(s.verbose - 1)
}

// evaluate clears the error log and returns the objective and whether it
// was evaluated without errors.
func (s *search) evaluate() (float64, bool) {
	s.nll.ClearEvalErrors()
	y := s.nll.Evaluate()

	return y, s.nll.NumEvalErrors() == 0 && !isBad(y)
}

// report sends a progress update without blocking.
func (s *search) report(phase string, iter int, x, y, step float64) {
	s.logger.Debug(phase,
		slog.Int("iter", iter),
		slog.Float64("x", x),
		slog.Float64("y", y-s.level),
		slog.Float64("step", step),
	)

	if s.progress == nil {
		return
	}

	select {
	case s.progress <- ProgressUpdate{
		Phase:     phase,
		Param:     s.r.Name(),
		Iteration: iter,
		X:         x,
		Y:         y,
		Level:     s.level,
		Step:      step,
	}:
	default:
	}
}
