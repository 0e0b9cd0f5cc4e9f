package cnll

import (
	"math"

	"github.com/thalesfsp/cnll/model"
)

//////
// Helper functions.
//////

// isBad reports whether x is NaN or infinite.
func isBad(x float64) bool {
	return math.IsNaN(x) || math.IsInf(x, 0)
}

func sq(x float64) float64 { return x * x }

// allConstant reports whether every variable is constant. An empty list is
// considered constant.
func allConstant(vars []*model.RealVar) bool {
	for _, v := range vars {
		if !v.IsConstant() {
			return false
		}
	}

	return true
}

// varSet returns a lookup over vars.
func varSet(vars []*model.RealVar) map[*model.RealVar]struct{} {
	set := make(map[*model.RealVar]struct{}, len(vars))
	for _, v := range vars {
		set[v] = struct{}{}
	}

	return set
}

// restoreConstant returns a func restoring the constant flag of v.
func restoreConstant(v *model.RealVar) func() {
	was := v.IsConstant()

	return func() { v.SetConstant(was) }
}
