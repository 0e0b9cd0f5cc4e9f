package model

// Category is a discrete variable with named states. It indexes channels of
// a simultaneous model and selects alternatives of a MultiPdf.
type Category struct {
	name   string
	index  int
	states []string
}

// NewCategory creates a category with the given states, positioned on the
// first one.
func NewCategory(name string, states ...string) *Category {
	return &Category{name: name, states: append([]string(nil), states...)}
}

// Name returns the category name.
func (c *Category) Name() string { return c.name }

// Index returns the current state index.
func (c *Category) Index() int { return c.index }

// SetIndex moves the category to state i. It returns false, leaving the
// category untouched, when i is out of range.
func (c *Category) SetIndex(i int) bool {
	if i < 0 || i >= len(c.states) {
		return false
	}

	c.index = i

	return true
}

// NumStates returns the number of states.
func (c *Category) NumStates() int { return len(c.states) }

// StateName returns the label of state i.
func (c *Category) StateName(i int) string { return c.states[i] }

// LookupState returns the index of the state with the given label.
func (c *Category) LookupState(label string) (int, bool) {
	for i, s := range c.states {
		if s == label {
			return i, true
		}
	}

	return -1, false
}

// UniqueCategories returns cats without duplicates, preserving order.
func UniqueCategories(groups ...[]*Category) []*Category {
	seen := make(map[*Category]struct{})

	var out []*Category

	for _, g := range groups {
		for _, c := range g {
			if c == nil {
				continue
			}

			if _, ok := seen[c]; ok {
				continue
			}

			seen[c] = struct{}{}
			out = append(out, c)
		}
	}

	return out
}
