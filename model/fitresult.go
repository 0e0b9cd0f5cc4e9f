package model

// ParamValue is the saved state of one variable.
type ParamValue struct {
	Var      *RealVar
	Val      float64
	Err      float64
	Constant bool
}

// Snapshot is a saved set of variable values.
type Snapshot []ParamValue

// TakeSnapshot records the current state of vars.
func TakeSnapshot(vars []*RealVar) Snapshot {
	s := make(Snapshot, 0, len(vars))
	for _, v := range vars {
		s = append(s, ParamValue{Var: v, Val: v.Val(), Err: v.Err(), Constant: v.IsConstant()})
	}

	return s
}

// Restore writes the saved values back. Constant flags are not touched.
func (s Snapshot) Restore() {
	for _, p := range s {
		p.Var.load(p.Val)
	}
}

// Find returns the saved state of the variable with the given name.
func (s Snapshot) Find(name string) (ParamValue, bool) {
	for _, p := range s {
		if p.Var.Name() == name {
			return p, true
		}
	}

	return ParamValue{}, false
}

// FitResult is the opaque snapshot a minimizer saves after a fit.
type FitResult struct {
	Status         int
	MinNLL         float64
	FloatParsFinal Snapshot
	ConstPars      Snapshot
}

// NewFitResult splits vars into floating and constant parameters.
func NewFitResult(vars []*RealVar, minNLL float64, status int) *FitResult {
	r := &FitResult{Status: status, MinNLL: minNLL}

	for _, p := range TakeSnapshot(vars) {
		if p.Constant {
			r.ConstPars = append(r.ConstPars, p)
		} else {
			r.FloatParsFinal = append(r.FloatParsFinal, p)
		}
	}

	return r
}

// Find looks a parameter up among floating, then constant parameters.
func (r *FitResult) Find(name string) (ParamValue, bool) {
	if p, ok := r.FloatParsFinal.Find(name); ok {
		return p, true
	}

	return r.ConstPars.Find(name)
}
