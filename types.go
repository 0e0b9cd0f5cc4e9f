package cnll

import (
	"github.com/thalesfsp/cnll/model"
	"golang.org/x/exp/constraints"
)

// ProgressUpdate represents the current state of a crossing search.
type ProgressUpdate struct {
	// Phase is one of "step", "refine" or "converge".
	Phase string

	// Param is the name of the parameter being scanned.
	Param string

	// Iteration is the current step (legacy) or outer iteration (new).
	Iteration int

	// X is the parameter value just evaluated.
	X float64

	// Y is the objective value at X.
	Y float64

	// Level is the target objective value.
	Level float64

	// Step is the current step in parameter units.
	Step float64
}

// Interval is a closed search window. Lo may be greater than Hi: the
// crossing finder scans from a start towards a bound on either side.
//
// Type Parameter:
//   - T: The floating point type of the bounds
//
// Fields:
// - Lo: One end of the window (inclusive)
// - Hi: The other end of the window (inclusive)
//
// Usage:
//
//	// Scan from the best fit 1.2 down to the lower limit 0.
//	window := NewInterval(1.2, 0.0)
//	window.Contains(0.5) // true
//	window.Clamp(-1)     // 0
type Interval[T constraints.Float] struct {
	Lo T
	Hi T
}

// Objective is the function the crossing finder scans. SimNLL and AddNLL
// implement it.
type Objective interface {
	// Evaluate returns the current value.
	Evaluate() float64

	// Parameters returns the variables the value depends on.
	Parameters() []*model.RealVar

	// NumEvalErrors returns the number of evaluation errors since the last
	// ClearEvalErrors.
	NumEvalErrors() int

	// ClearEvalErrors resets the evaluation-error log.
	ClearEvalErrors()
}

// Minimizer minimises an Objective over its floating parameters. The
// minimizer package provides a gonum-backed implementation.
//
// Implementations must:
// - Leave the parameters at the best point found when returning true
// - Skip constant and analytically minimised parameters
// - Return false, never panic, on numerical failure
type Minimizer interface {
	Minimize(verbosity int) bool
	Improve(verbosity int) bool
	Hesse() bool
	Minos(params []*model.RealVar) bool
	Save() *model.FitResult

	Tolerance() float64
	SetTolerance(tol float64)

	Strategy() int
	SetStrategy(strategy int)

	Algorithm() string
	SetAlgorithm(algo string) error

	SetErrorLevel(up float64)
}

//////
// Methods.
//////

// Contains reports whether x lies in the window.
func (i Interval[T]) Contains(x T) bool {
	lo, hi := i.bounds()

	return x >= lo && x <= hi
}

// Clamp returns x moved into the window.
func (i Interval[T]) Clamp(x T) T {
	lo, hi := i.bounds()

	switch {
	case x < lo:
		return lo
	case x > hi:
		return hi
	default:
		return x
	}
}

// Width returns the absolute size of the window.
func (i Interval[T]) Width() T {
	lo, hi := i.bounds()

	return hi - lo
}

func (i Interval[T]) bounds() (T, T) {
	if i.Lo > i.Hi {
		return i.Hi, i.Lo
	}

	return i.Lo, i.Hi
}

//////
// Factory.
//////

// NewInterval creates a window between a and b, in any order.
func NewInterval[T constraints.Float](a, b T) Interval[T] {
	return Interval[T]{Lo: a, Hi: b}
}
