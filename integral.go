package cnll

import (
	"fmt"
	"math"

	"github.com/thalesfsp/cnll/model"
	"gonum.org/v1/gonum/integrate/quad"
)

// quadPoints is the number of Gauss-Legendre nodes used for numeric
// normalisation.
const quadPoints = 64

// integral caches the normalisation of one pdf over the channel
// observables. It is recomputed only when a non-observable parameter or a
// category of the pdf changes.
type integral struct {
	pdf     model.Pdf
	obs     []*model.RealVar
	checker *Checker
	value   float64
	valid   bool
}

func newIntegral(pdf model.Pdf, obs []*model.RealVar) (*integral, error) {
	in := &integral{
		pdf:     pdf,
		obs:     obs,
		checker: NewChecker(model.WithoutVars(pdf.Parameters(), obs), pdf.Categories()),
	}

	if ai, ok := pdf.(model.AnalyticIntegrator); ok {
		if _, ok := ai.Integral(obs); ok {
			return in, nil
		}
	}

	if err := canIntegrate(obs); err != nil {
		return nil, fmt.Errorf("pdf %q: %w", pdf.Name(), err)
	}

	return in, nil
}

func canIntegrate(obs []*model.RealVar) error {
	if len(obs) != 1 {
		return ErrMultiObservableIntegral
	}

	if !obs[0].HasFiniteRange() {
		return ErrUnboundedObservable
	}

	return nil
}

// Value returns the integral at the current parameter values.
func (in *integral) Value() float64 {
	if in.checker.Changed(true) || !in.valid {
		in.value = in.compute()
		in.valid = true
	}

	return in.value
}

// analytic reports whether the pdf integrates itself at the current state.
func (in *integral) analytic() bool {
	ai, ok := in.pdf.(model.AnalyticIntegrator)
	if !ok {
		return false
	}

	_, ok = ai.Integral(in.obs)

	return ok
}

func (in *integral) compute() float64 {
	if ai, ok := in.pdf.(model.AnalyticIntegrator); ok {
		if v, ok := ai.Integral(in.obs); ok {
			return v
		}
	}

	if canIntegrate(in.obs) != nil {
		return math.NaN()
	}

	x := in.obs[0]
	saved := x.Val()

	defer x.SetVal(saved)

	f := func(v float64) float64 {
		x.SetVal(v)

		return in.pdf.Value()
	}

	return quad.Fixed(f, x.Min(), x.Max(), quadPoints, quad.Legendre{}, 0)
}
