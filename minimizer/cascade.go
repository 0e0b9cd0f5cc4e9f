// Package minimizer minimises likelihoods over their floating parameters
// with gonum/optimize.
package minimizer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/thalesfsp/cnll/model"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

//////
// Const, vars, types.
//////

// Algorithm names accepted by SetAlgorithm.
const (
	NelderMead = "neldermead"
	BFGS       = "bfgs"
	LBFGS      = "lbfgs"
)

// penalty replaces non-finite objective values.
const penalty = math.MaxFloat64 / 2

// Status codes stored in saved fit results.
const (
	StatusOK     = 0
	StatusFailed = 1
)

// ErrUnknownAlgorithm is returned by SetAlgorithm.
var ErrUnknownAlgorithm = errors.New("minimizer: unknown algorithm")

// Problem is the function to minimise.
type Problem interface {
	Evaluate() float64
	Parameters() []*model.RealVar
}

// Cascade minimises a Problem over its floating parameters: those that are
// neither constant nor analytically minimised. Minimize runs the selected
// algorithm and falls back to the others when it fails; Improve runs only
// the selected one from the current point.
//
// Not safe for concurrent use.
type Cascade struct {
	problem   Problem
	algo      string
	tolerance float64
	strategy  int
	up        float64
	logger    *slog.Logger

	lastF      float64
	lastStatus int
}

// Option configures a Cascade.
type Option func(*Cascade)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cascade) { c.logger = l }
}

// WithAlgorithm selects the algorithm. Unknown names are ignored.
func WithAlgorithm(algo string) Option {
	return func(c *Cascade) { _ = c.SetAlgorithm(algo) }
}

// WithTolerance sets the tolerance.
func WithTolerance(tol float64) Option {
	return func(c *Cascade) { c.SetTolerance(tol) }
}

//////
// Factory.
//////

// New creates a minimizer over p, with Nelder-Mead, tolerance 0.1,
// strategy 1 and error level 0.5.
func New(p Problem, opts ...Option) *Cascade {
	c := &Cascade{
		problem:   p,
		algo:      NelderMead,
		tolerance: 0.1,
		strategy:  1,
		up:        0.5,
		lastF:     math.NaN(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

//////
// Methods.
//////

// Minimize runs the selected algorithm, then the others in turn until one
// succeeds.
func (c *Cascade) Minimize(verbosity int) bool {
	for _, algo := range c.cascade() {
		if c.run(algo, verbosity) {
			return true
		}

		c.logger.Debug("algorithm failed, trying next", slog.String("algorithm", algo))
	}

	return false
}

// Improve runs the selected algorithm once from the current point.
func (c *Cascade) Improve(verbosity int) bool {
	return c.run(c.algo, verbosity)
}

// Hesse estimates the covariance from a finite-difference Hessian and sets
// the symmetric error of every floating parameter.
func (c *Cascade) Hesse() bool {
	vars := c.floating()
	if len(vars) == 0 {
		return true
	}

	x := values(vars)
	f := c.objective(vars)

	defer setValues(vars, x)

	h := mat.NewSymDense(len(vars), nil)
	fd.Hessian(h, f, x, nil)

	var chol mat.Cholesky
	if ok := chol.Factorize(h); !ok {
		c.logger.Warn("hessian is not positive definite")

		return false
	}

	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		c.logger.Warn("cannot invert hessian", slog.Any("error", err))

		return false
	}

	for i, v := range vars {
		v.SetErr(math.Sqrt(2 * c.up * cov.At(i, i)))
	}

	return true
}

// Minos finds, for each of params, where the objective profiled over the
// other floating parameters rises by the error level on either side of the
// minimum, and stores the distances as asymmetric errors.
func (c *Cascade) Minos(params []*model.RealVar) bool {
	ok := true

	for _, p := range params {
		if !c.minos(p) {
			ok = false
		}
	}

	return ok
}

// Save snapshots the problem parameters.
func (c *Cascade) Save() *model.FitResult {
	return model.NewFitResult(c.problem.Parameters(), c.lastF, c.lastStatus)
}

// Tolerance returns the tolerance.
func (c *Cascade) Tolerance() float64 { return c.tolerance }

// SetTolerance sets the tolerance; the convergence threshold on the
// objective is 1e-3 times the tolerance.
func (c *Cascade) SetTolerance(tol float64) {
	if tol > 0 {
		c.tolerance = tol
	}
}

// Strategy returns the strategy.
func (c *Cascade) Strategy() int { return c.strategy }

// SetStrategy sets the strategy, 0 (fast) to 2 (careful).
func (c *Cascade) SetStrategy(strategy int) {
	c.strategy = min(max(strategy, 0), 2)
}

// Algorithm returns the selected algorithm.
func (c *Cascade) Algorithm() string { return c.algo }

// SetAlgorithm selects neldermead, bfgs or lbfgs, case-insensitively.
func (c *Cascade) SetAlgorithm(algo string) error {
	switch a := strings.ToLower(strings.TrimSpace(algo)); a {
	case NelderMead, BFGS, LBFGS:
		c.algo = a

		return nil
	default:
		return fmt.Errorf("%q: %w", algo, ErrUnknownAlgorithm)
	}
}

// SetErrorLevel sets the objective rise defining one standard deviation.
func (c *Cascade) SetErrorLevel(up float64) {
	if up > 0 {
		c.up = up
	}
}

// ErrorLevel returns the error level.
func (c *Cascade) ErrorLevel() float64 { return c.up }

//////
// Helper functions.
//////

// run minimises with one algorithm and leaves the parameters at the result
// on success, at the start point otherwise.
func (c *Cascade) run(algo string, verbosity int) bool {
	vars := c.floating()
	if len(vars) == 0 {
		c.lastF = c.problem.Evaluate()
		c.lastStatus = statusOf(!isBad(c.lastF))

		return c.lastStatus == StatusOK
	}

	x0 := values(vars)
	f := c.objective(vars)

	p := optimize.Problem{Func: f}
	if algo != NelderMead {
		p.Grad = func(grad, x []float64) {
			fd.Gradient(grad, f, x, nil)
		}
	}

	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-3 * c.tolerance,
			Iterations: c.patience(),
		},
		FuncEvaluations: 2000 * (c.strategy + 1) * len(vars),
	}

	res, err := optimize.Minimize(p, x0, settings, method(algo))
	if err != nil || res == nil || res.Status.Early() || isBad(res.F) || res.F >= penalty {
		if verbosity > 0 {
			c.logger.Debug("minimization failed", slog.String("algorithm", algo), slog.Any("error", err))
		}

		setValues(vars, x0)
		c.lastF = c.problem.Evaluate()
		c.lastStatus = StatusFailed

		return false
	}

	setValues(vars, res.X)
	c.lastF = c.problem.Evaluate()
	c.lastStatus = StatusOK

	if verbosity > 0 {
		c.logger.Debug("minimized",
			slog.String("algorithm", algo),
			slog.Float64("f", c.lastF),
			slog.Int("evaluations", res.FuncEvaluations),
		)
	}

	return true
}

// minos scans one parameter on both sides of the current minimum.
func (c *Cascade) minos(p *model.RealVar) bool {
	if p.IsConstant() || p.IsAnalytic() {
		return false
	}

	all := c.problem.Parameters()
	best := model.TakeSnapshot(all)

	defer best.Restore()

	wasConst := p.IsConstant()
	p.SetConstant(true)

	defer p.SetConstant(wasConst)

	xHat := p.Val()
	target := c.problem.Evaluate() + c.up

	profile := func(x float64) float64 {
		best.Restore()
		p.SetVal(x)
		c.Improve(0)

		return c.problem.Evaluate()
	}

	step := p.Err()
	if !(step > 0) {
		step = 0.1
		if p.HasFiniteRange() {
			step = 0.05 * (p.Max() - p.Min())
		}
	}

	lo, okLo := crossing(profile, xHat, -step, p.Min(), target)
	hi, okHi := crossing(profile, xHat, step, p.Max(), target)

	p.SetAsymError(lo-xHat, hi-xHat)

	return okLo && okHi
}

// crossing brackets the point where f rises to target going from x0 in the
// direction of step, then bisects. The bool is false when the bound is
// reached first.
func crossing(f func(float64) float64, x0, step, bound, target float64) (float64, bool) {
	inside := x0
	outside := x0 + step

	for {
		if (step > 0 && outside >= bound) || (step < 0 && outside <= bound) {
			outside = bound
			if f(outside) < target {
				return bound, false
			}

			break
		}

		if f(outside) >= target {
			break
		}

		inside = outside
		step *= 2
		outside = x0 + step
	}

	for i := 0; i < 40; i++ {
		mid := 0.5 * (inside + outside)
		if f(mid) < target {
			inside = mid
		} else {
			outside = mid
		}
	}

	return 0.5 * (inside + outside), true
}

// objective maps a point to the problem value, clamping into the variable
// ranges and penalising the distance outside them.
func (c *Cascade) objective(vars []*model.RealVar) func(x []float64) float64 {
	return func(x []float64) float64 {
		var outside float64

		for i, v := range vars {
			v.SetVal(x[i])

			d := x[i] - v.Val()
			outside += d * d
		}

		y := c.problem.Evaluate()
		if isBad(y) {
			return penalty
		}

		return y + 1e3*outside
	}
}

// floating returns the parameters handed to the algorithms.
func (c *Cascade) floating() []*model.RealVar {
	var out []*model.RealVar

	for _, v := range c.problem.Parameters() {
		if !v.IsConstant() && !v.IsAnalytic() {
			out = append(out, v)
		}
	}

	return out
}

// patience is the number of iterations without improvement before
// convergence is declared.
func (c *Cascade) patience() int {
	switch c.strategy {
	case 0:
		return 20
	case 2:
		return 100
	default:
		return 50
	}
}

// cascade returns the selected algorithm followed by the fallbacks.
func (c *Cascade) cascade() []string {
	out := []string{c.algo}

	for _, a := range []string{NelderMead, BFGS, LBFGS} {
		if a != c.algo {
			out = append(out, a)
		}
	}

	return out
}

func method(algo string) optimize.Method {
	switch algo {
	case BFGS:
		return &optimize.BFGS{}
	case LBFGS:
		return &optimize.LBFGS{}
	default:
		return &optimize.NelderMead{}
	}
}

func values(vars []*model.RealVar) []float64 {
	x := make([]float64, len(vars))
	for i, v := range vars {
		x[i] = v.Val()
	}

	return x
}

func setValues(vars []*model.RealVar, x []float64) {
	for i, v := range vars {
		v.SetVal(x[i])
	}
}

func statusOf(ok bool) int {
	if ok {
		return StatusOK
	}

	return StatusFailed
}

func isBad(x float64) bool {
	return math.IsNaN(x) || math.IsInf(x, 0)
}
