package model

import "math"

//////
// Const, vars, types.
//////

// RealVar is a real-valued variable. The same type represents fit
// parameters, observables (loaded entry by entry from a dataset) and global
// observables of constraint terms.
//
// Fields:
// - name: Unique name inside a Workspace
// - val: Current value
// - min, max: Allowed range, SetVal clamps into it
// - err, errLo, errHi: Symmetric and asymmetric uncertainties
// - constant: Excluded from minimisation when true
// - analytic: Minimised analytically by the likelihood itself
//
// Thread safety:
// - Not safe for concurrent use. A likelihood and everything it reads is
//   owned by a single fit.
type RealVar struct {
	name     string
	val      float64
	min, max float64
	err      float64
	errLo    float64
	errHi    float64
	constant bool
	analytic bool
}

// Real is anything that yields a real value from a set of variables, for
// example a coefficient of a sum of pdfs.
type Real interface {
	// Value returns the current value.
	Value() float64

	// Parameters returns every variable the value depends on.
	Parameters() []*RealVar
}

//////
// Methods.
//////

// Name returns the variable name.
func (v *RealVar) Name() string { return v.name }

// Val returns the current value.
func (v *RealVar) Val() float64 { return v.val }

// Value implements Real.
func (v *RealVar) Value() float64 { return v.val }

// Parameters implements Real.
func (v *RealVar) Parameters() []*RealVar { return []*RealVar{v} }

// SetVal sets the value, clamped to the variable range. Callers that need
// to know whether the value was accepted compare Val() afterwards.
func (v *RealVar) SetVal(x float64) {
	switch {
	case x < v.min:
		v.val = v.min
	case x > v.max:
		v.val = v.max
	default:
		v.val = x
	}
}

// Min returns the lower bound of the range.
func (v *RealVar) Min() float64 { return v.min }

// Max returns the upper bound of the range.
func (v *RealVar) Max() float64 { return v.max }

// SetRange changes the allowed range and re-clamps the current value.
func (v *RealVar) SetRange(lo, hi float64) {
	if lo > hi {
		lo, hi = hi, lo
	}

	v.min, v.max = lo, hi
	v.SetVal(v.val)
}

// RemoveRange makes the variable unbounded.
func (v *RealVar) RemoveRange() {
	v.min, v.max = math.Inf(-1), math.Inf(1)
}

// HasFiniteRange reports whether both bounds are finite.
func (v *RealVar) HasFiniteRange() bool {
	return !math.IsInf(v.min, 0) && !math.IsInf(v.max, 0)
}

// IsConstant reports whether the variable is frozen.
func (v *RealVar) IsConstant() bool { return v.constant }

// SetConstant freezes or releases the variable.
func (v *RealVar) SetConstant(constant bool) { v.constant = constant }

// IsAnalytic reports whether the variable is minimised analytically by a
// likelihood term and must not be handed to a numerical minimizer.
func (v *RealVar) IsAnalytic() bool { return v.analytic }

// SetAnalytic flags the variable as analytically minimised.
func (v *RealVar) SetAnalytic(analytic bool) { v.analytic = analytic }

// Err returns the symmetric uncertainty.
func (v *RealVar) Err() float64 { return v.err }

// SetErr sets the symmetric uncertainty.
func (v *RealVar) SetErr(err float64) { v.err = err }

// AsymErrorLo returns the (negative) lower uncertainty.
func (v *RealVar) AsymErrorLo() float64 { return v.errLo }

// AsymErrorHi returns the upper uncertainty.
func (v *RealVar) AsymErrorHi() float64 { return v.errHi }

// SetAsymError sets the asymmetric uncertainties.
func (v *RealVar) SetAsymError(lo, hi float64) {
	v.errLo, v.errHi = lo, hi
}

// load sets the value without clamping. Datasets use it to load entries
// into observables.
func (v *RealVar) load(x float64) { v.val = x }

//////
// Factory.
//////

// NewRealVar creates a floating variable with the given value and range.
func NewRealVar(name string, val, min, max float64) *RealVar {
	v := &RealVar{name: name}
	v.SetRange(min, max)
	v.SetVal(val)

	return v
}

// NewConst creates a constant, unbounded variable.
func NewConst(name string, val float64) *RealVar {
	v := &RealVar{name: name, constant: true}
	v.RemoveRange()
	v.val = val

	return v
}

// UniqueVars returns vars without duplicates, preserving the first
// occurrence order. nil entries are dropped.
func UniqueVars(groups ...[]*RealVar) []*RealVar {
	seen := make(map[*RealVar]struct{})

	var out []*RealVar

	for _, g := range groups {
		for _, v := range g {
			if v == nil {
				continue
			}

			if _, ok := seen[v]; ok {
				continue
			}

			seen[v] = struct{}{}
			out = append(out, v)
		}
	}

	return out
}

// WithoutVars returns vars minus every element of drop.
func WithoutVars(vars, drop []*RealVar) []*RealVar {
	if len(drop) == 0 {
		return vars
	}

	skip := make(map[*RealVar]struct{}, len(drop))
	for _, d := range drop {
		skip[d] = struct{}{}
	}

	out := make([]*RealVar, 0, len(vars))

	for _, v := range vars {
		if _, ok := skip[v]; !ok {
			out = append(out, v)
		}
	}

	return out
}
