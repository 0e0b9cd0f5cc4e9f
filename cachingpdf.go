package cnll

import (
	"github.com/thalesfsp/cnll/model"
)

// CachingPdfOption configures a CachingPdf.
type CachingPdfOption func(*CachingPdf)

// WithPdfMetrics records cache hits and misses on m.
func WithPdfMetrics(m *Metrics) CachingPdfOption {
	return func(c *CachingPdf) { c.metrics = m }
}

// WithCacheSize sets the number of cache slots.
func WithCacheSize(size int) CachingPdfOption {
	return func(c *CachingPdf) { c.cacheSize = size }
}

// WithPdfIncludeZeroWeights keeps zero-weight entries.
func WithPdfIncludeZeroWeights(include bool) CachingPdfOption {
	return func(c *CachingPdf) { c.includeZero = include }
}

// CachingPdf evaluates a pdf over every retained entry of a dataset and
// caches the result against the pdf's non-observable parameters.
type CachingPdf struct {
	pdf         model.Pdf
	obs         []*model.RealVar
	cache       *ValuesCache[float64]
	cacheSize   int
	metrics     *Metrics
	lastData    model.Data
	entries     []int
	includeZero bool
	dirty       bool
}

// NewCachingPdf wraps pdf. obs are the observables the dataset loads; they
// are excluded from change tracking.
func NewCachingPdf(pdf model.Pdf, obs []*model.RealVar, opts ...CachingPdfOption) *CachingPdf {
	c := &CachingPdf{pdf: pdf, obs: obs, dirty: true}

	for _, opt := range opts {
		opt(c)
	}

	params := model.WithoutVars(pdf.Parameters(), obs)
	c.cache = NewValuesCache[float64](params, pdf.Categories(), c.cacheSize)

	if cheap, ok := pdf.(model.Cheap); ok && cheap.Cheap() {
		c.cache.SetDirectMode(true)
	}

	return c
}

// Eval returns the pdf value for each retained entry of data. The returned
// slice is owned by the cache and is valid until the next call.
func (c *CachingPdf) Eval(data model.Data) []float64 {
	if c.dirty || data != c.lastData {
		c.rebuild(data)
	}

	vals, hit := c.cache.Get()
	if hit {
		c.metrics.cacheHit(c.pdf.Name())

		return *vals
	}

	c.metrics.cacheMiss(c.pdf.Name())

	out := *vals
	if cap(out) < len(c.entries) {
		out = make([]float64, len(c.entries))
	}

	out = out[:len(c.entries)]

	for j, i := range c.entries {
		data.Load(i)
		out[j] = c.pdf.Value()
	}

	*vals = out

	return out
}

// rebuild recomputes the zero-weight mask for data and drops cached values.
func (c *CachingPdf) rebuild(data model.Data) {
	c.lastData = data
	c.dirty = false
	c.entries = c.entries[:0]

	if data != nil {
		for i, n := 0, data.NumEntries(); i < n; i++ {
			if c.includeZero || data.Weight(i) != 0 {
				c.entries = append(c.entries, i)
			}
		}
	}

	c.cache.Clear()
}

// SetDataDirty forces the mask to be rebuilt at the next evaluation.
func (c *CachingPdf) SetDataDirty() { c.dirty = true }

// SetIncludeZeroWeights changes the zero-weight policy and marks the data
// dirty.
func (c *CachingPdf) SetIncludeZeroWeights(include bool) {
	c.includeZero = include
	c.dirty = true
}

// SetDirectMode bypasses the cache.
func (c *CachingPdf) SetDirectMode(direct bool) { c.cache.SetDirectMode(direct) }

// Pdf returns the wrapped pdf.
func (c *CachingPdf) Pdf() model.Pdf { return c.pdf }

// Retained returns the number of entries kept by the mask.
func (c *CachingPdf) Retained() int { return len(c.entries) }

// Entries returns the dataset indices kept by the mask, in order.
func (c *CachingPdf) Entries() []int { return c.entries }

// Stats returns the cache counters.
func (c *CachingPdf) Stats() ValuesCacheStats { return c.cache.Stats() }
