package cnll

import "github.com/thalesfsp/cnll/model"

// MaxCacheSlots is the largest number of snapshots a ValuesCache keeps.
const MaxCacheSlots = 3

// ValuesCacheStats counts cache outcomes.
type ValuesCacheStats struct {
	Hits      int
	Misses    int
	Evictions int
}

type cacheSlot[T any] struct {
	checker *Checker
	values  []T
	valid   bool
}

// ValuesCache keeps up to three vectors of values, each keyed by a
// snapshot of the variables they were computed from. Minimisers that
// alternate between a few parameter points (gradient steps, line searches)
// get them back without recomputation.
//
// Slots are filled in order and then recycled round robin, oldest first.
// Invalid slots are reused before a valid one is evicted.
//
// Not safe for concurrent use.
type ValuesCache[T any] struct {
	template *Checker
	slots    []*cacheSlot[T]
	size     int
	next     int
	direct   bool
	scratch  []T
	stats    ValuesCacheStats
}

// NewValuesCache creates a cache tracking vars and cats. size is clamped
// to [1, MaxCacheSlots]; zero selects MaxCacheSlots.
func NewValuesCache[T any](vars []*model.RealVar, cats []*model.Category, size int) *ValuesCache[T] {
	if size <= 0 || size > MaxCacheSlots {
		size = MaxCacheSlots
	}

	return &ValuesCache[T]{
		template: NewChecker(vars, cats),
		slots:    make([]*cacheSlot[T], 0, size),
		size:     size,
	}
}

// Get returns the values computed at the current variable values and true,
// or a slot to fill and false. On a miss the slot is already keyed to the
// current values and marked valid: the caller must fill it before the
// variables change.
func (c *ValuesCache[T]) Get() (*[]T, bool) {
	if c.direct {
		c.stats.Misses++

		return &c.scratch, false
	}

	for _, s := range c.slots {
		if s.valid && !s.checker.Changed(false) {
			c.stats.Hits++

			return &s.values, true
		}
	}

	c.stats.Misses++

	s := c.reusable()
	s.checker.Changed(true)

	for _, o := range c.slots {
		if o != s && o.checker.Equal(s.checker) {
			o.valid = false
		}
	}

	s.valid = true

	return &s.values, false
}

// reusable picks the slot a miss is written into.
func (c *ValuesCache[T]) reusable() *cacheSlot[T] {
	for _, s := range c.slots {
		if !s.valid {
			return s
		}
	}

	if len(c.slots) < c.size {
		s := &cacheSlot[T]{checker: c.template.Clone()}
		c.slots = append(c.slots, s)

		return s
	}

	s := c.slots[c.next]
	c.next = (c.next + 1) % c.size
	c.stats.Evictions++

	return s
}

// SetDirectMode bypasses the slot search: Get always returns a scratch
// slot and false.
func (c *ValuesCache[T]) SetDirectMode(direct bool) { c.direct = direct }

// DirectMode reports whether the cache is bypassed.
func (c *ValuesCache[T]) DirectMode() bool { return c.direct }

// Clear invalidates every slot. Storage is kept.
func (c *ValuesCache[T]) Clear() {
	for _, s := range c.slots {
		s.valid = false
	}
}

// Size returns the slot capacity.
func (c *ValuesCache[T]) Size() int { return c.size }

// Stats returns the hit, miss and eviction counters.
func (c *ValuesCache[T]) Stats() ValuesCacheStats { return c.stats }
