package minimizer

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thalesfsp/cnll/model"
)

// funcProblem adapts a closure over a and b to Problem.
type funcProblem struct {
	a, b *model.RealVar
	fn   func(a, b float64) float64
}

func newFuncProblem(fn func(a, b float64) float64) *funcProblem {
	return &funcProblem{
		a:  model.NewRealVar("a", 0, -10, 10),
		b:  model.NewRealVar("b", 0, -10, 10),
		fn: fn,
	}
}

func (p *funcProblem) Evaluate() float64 { return p.fn(p.a.Val(), p.b.Val()) }

func (p *funcProblem) Parameters() []*model.RealVar { return []*model.RealVar{p.a, p.b} }

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// bowl has its minimum 0 at (1, -2) and curvatures 2 and 8.
func bowl(a, b float64) float64 {
	return (a-1)*(a-1) + 4*(b+2)*(b+2)
}

func TestMinimizeEachAlgorithm(t *testing.T) {
	for _, algo := range []string{NelderMead, BFGS, LBFGS} {
		t.Run(algo, func(t *testing.T) {
			p := newFuncProblem(bowl)
			c := New(p, WithLogger(quiet()), WithAlgorithm(algo), WithTolerance(1e-3))

			require.True(t, c.Minimize(0))

			assert.InDelta(t, 1, p.a.Val(), 1e-2)
			assert.InDelta(t, -2, p.b.Val(), 1e-2)

			res := c.Save()
			assert.Equal(t, StatusOK, res.Status)
			assert.InDelta(t, 0, res.MinNLL, 1e-4)
			assert.Len(t, res.FloatParsFinal, 2)
		})
	}
}

func TestMinimizeRespectsBounds(t *testing.T) {
	p := newFuncProblem(func(a, b float64) float64 { return (a-20)*(a-20) + b*b })
	c := New(p, WithLogger(quiet()), WithTolerance(1e-3))

	require.True(t, c.Minimize(0))
	assert.LessOrEqual(t, p.a.Val(), 10.0)
	assert.InDelta(t, 10, p.a.Val(), 1e-1)
}

func TestMinimizeWithoutFloatingParameters(t *testing.T) {
	p := newFuncProblem(bowl)
	model.SetAllConstant(p.Parameters(), true)

	c := New(p, WithLogger(quiet()))

	assert.True(t, c.Minimize(0))
	assert.True(t, c.Hesse())

	res := c.Save()
	assert.Equal(t, 17.0, res.MinNLL)
	assert.Len(t, res.ConstPars, 2)
	assert.Empty(t, res.FloatParsFinal)
}

func TestMinimizeBadObjective(t *testing.T) {
	p := newFuncProblem(func(float64, float64) float64 { return math.NaN() })
	p.a.SetVal(0.5)

	c := New(p, WithLogger(quiet()))

	assert.False(t, c.Minimize(1))
	assert.Equal(t, 0.5, p.a.Val(), "start point restored")
	assert.Equal(t, StatusFailed, c.Save().Status)
}

func TestHesse(t *testing.T) {
	p := newFuncProblem(bowl)
	c := New(p, WithLogger(quiet()), WithTolerance(1e-3))

	require.True(t, c.Minimize(0))
	require.True(t, c.Hesse())

	assert.InDelta(t, math.Sqrt(0.5), p.a.Err(), 1e-2)
	assert.InDelta(t, math.Sqrt(0.125), p.b.Err(), 1e-2)

	c.SetErrorLevel(2)
	require.True(t, c.Hesse())
	assert.InDelta(t, math.Sqrt(2), p.a.Err(), 2e-2)
}

func TestMinosProfilesAndIsAsymmetric(t *testing.T) {
	// Profiled over b the objective is (a - 1)², steeper below 1.
	p := newFuncProblem(func(a, b float64) float64 {
		d := a - 1
		if d < 0 {
			d *= 2
		}

		return d*d + (b-a)*(b-a)
	})

	c := New(p, WithLogger(quiet()), WithTolerance(1e-3))
	require.True(t, c.Minimize(0))

	aHat, bHat := p.a.Val(), p.b.Val()

	require.True(t, c.Minos([]*model.RealVar{p.a}))

	assert.InDelta(t, 1+math.Sqrt(0.5), aHat+p.a.AsymErrorHi(), 2e-2)
	assert.InDelta(t, 1-math.Sqrt(0.5)/2, aHat+p.a.AsymErrorLo(), 2e-2)

	assert.Equal(t, aHat, p.a.Val())
	assert.Equal(t, bHat, p.b.Val())
	assert.False(t, p.a.IsConstant())
}

func TestMinosHitsBound(t *testing.T) {
	p := newFuncProblem(bowl)
	p.a.SetRange(0, 10)

	c := New(p, WithLogger(quiet()), WithTolerance(1e-3))
	require.True(t, c.Minimize(0))

	c.SetErrorLevel(2)
	assert.False(t, c.Minos([]*model.RealVar{p.a}))
	assert.InDelta(t, -p.a.Val(), p.a.AsymErrorLo(), 1e-12)
	assert.InDelta(t, math.Sqrt(2), p.a.AsymErrorHi(), 2e-2)

	p.b.SetConstant(true)
	assert.False(t, c.Minos([]*model.RealVar{p.b}), "constant parameters have no interval")
}

func TestSettings(t *testing.T) {
	c := New(newFuncProblem(bowl))

	assert.Equal(t, NelderMead, c.Algorithm())
	assert.Equal(t, 0.1, c.Tolerance())
	assert.Equal(t, 1, c.Strategy())
	assert.Equal(t, 0.5, c.ErrorLevel())

	require.NoError(t, c.SetAlgorithm(" BFGS "))
	assert.Equal(t, BFGS, c.Algorithm())

	err := c.SetAlgorithm("simplex")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
	assert.Equal(t, BFGS, c.Algorithm())

	c.SetStrategy(7)
	assert.Equal(t, 2, c.Strategy())

	c.SetStrategy(-1)
	assert.Equal(t, 0, c.Strategy())

	c.SetTolerance(0)
	assert.Equal(t, 0.1, c.Tolerance())

	c.SetErrorLevel(-1)
	assert.Equal(t, 0.5, c.ErrorLevel())

	assert.Equal(t, []string{BFGS, NelderMead, LBFGS}, c.cascade())
}
