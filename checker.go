package cnll

import "github.com/thalesfsp/cnll/model"

// Checker detects changes in a set of variables and categories since the
// last recorded snapshot. Any difference counts, however small.
type Checker struct {
	vars []*model.RealVar
	vals []float64
	cats []*model.Category
	idxs []int
}

// NewChecker records the current values of vars and cats.
func NewChecker(vars []*model.RealVar, cats []*model.Category) *Checker {
	c := &Checker{
		vars: vars,
		vals: make([]float64, len(vars)),
		cats: cats,
		idxs: make([]int, len(cats)),
	}

	c.record()

	return c
}

// Changed reports whether any tracked value differs from the snapshot.
// With updateIfChanged the snapshot is overwritten when a change is found;
// otherwise the call has no side effect.
func (c *Checker) Changed(updateIfChanged bool) bool {
	changed := false

	for i, v := range c.vars {
		if v.Val() != c.vals[i] {
			changed = true

			if !updateIfChanged {
				return true
			}

			c.vals[i] = v.Val()
		}
	}

	for i, cat := range c.cats {
		if cat.Index() != c.idxs[i] {
			changed = true

			if !updateIfChanged {
				return true
			}

			c.idxs[i] = cat.Index()
		}
	}

	return changed
}

// Clone returns an independent copy sharing the tracked variables.
func (c *Checker) Clone() *Checker {
	return &Checker{
		vars: c.vars,
		vals: append([]float64(nil), c.vals...),
		cats: c.cats,
		idxs: append([]int(nil), c.idxs...),
	}
}

// Equal reports whether two checkers over the same variables hold the same
// snapshot.
func (c *Checker) Equal(o *Checker) bool {
	if len(c.vals) != len(o.vals) || len(c.idxs) != len(o.idxs) {
		return false
	}

	for i := range c.vals {
		if c.vals[i] != o.vals[i] {
			return false
		}
	}

	for i := range c.idxs {
		if c.idxs[i] != o.idxs[i] {
			return false
		}
	}

	return true
}

func (c *Checker) record() {
	for i, v := range c.vars {
		c.vals[i] = v.Val()
	}

	for i, cat := range c.cats {
		c.idxs[i] = cat.Index()
	}
}
