package cnll

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/thalesfsp/cnll/model"
)

// countingPdf is exp(c x) and counts its evaluations.
type countingPdf struct {
	x, c  *model.RealVar
	calls int
}

func (p *countingPdf) Name() string { return "counting" }

func (p *countingPdf) Value() float64 {
	p.calls++

	return math.Exp(p.c.Val() * p.x.Val())
}

func (p *countingPdf) Parameters() []*model.RealVar { return []*model.RealVar{p.x, p.c} }

func (p *countingPdf) Categories() []*model.Category { return nil }

func TestCachingPdfSkipsZeroWeights(t *testing.T) {
	x := model.NewRealVar("x", 0, 0, 10)
	c := model.NewRealVar("c", -1, -5, 5)
	pdf := &countingPdf{x: x, c: c}

	data := model.NewDataSet("d", x)
	data.Add(1, 1)
	data.Add(0, 2)
	data.Add(2, 3)

	cp := NewCachingPdf(pdf, []*model.RealVar{x}, WithPdfMetrics(nil))

	vals := cp.Eval(data)
	if diff := cmp.Diff([]float64{math.Exp(-1), math.Exp(-3)}, vals, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []int{0, 2}, cp.Entries())
	assert.Equal(t, 2, pdf.calls)

	cp.SetIncludeZeroWeights(true)
	assert.Len(t, cp.Eval(data), 3)
	assert.Equal(t, 3, cp.Retained())
}

func TestCachingPdfCachesOnParameters(t *testing.T) {
	x := model.NewRealVar("x", 0, 0, 10)
	c := model.NewRealVar("c", -1, -5, 5)
	pdf := &countingPdf{x: x, c: c}

	data := model.NewDataSet("d", x)
	data.Add(1, 1)
	data.Add(1, 2)

	cp := NewCachingPdf(pdf, []*model.RealVar{x})

	cp.Eval(data)
	cp.Eval(data)
	assert.Equal(t, 2, pdf.calls, "loading observables must not invalidate the cache")

	c.SetVal(-2)
	vals := cp.Eval(data)
	assert.Equal(t, 4, pdf.calls)
	assert.InDelta(t, math.Exp(-4), vals[1], 1e-12)

	c.SetVal(-1)
	vals = cp.Eval(data)
	assert.Equal(t, 4, pdf.calls)
	assert.InDelta(t, math.Exp(-2), vals[1], 1e-12)

	// A new dataset drops every cached vector.
	other := model.NewDataSet("o", x)
	other.Add(1, 0)
	vals = cp.Eval(other)
	assert.Equal(t, 5, pdf.calls)
	assert.Equal(t, []float64{1}, vals)

	stats := cp.Stats()
	assert.Equal(t, 2, stats.Hits)
	assert.Equal(t, 3, stats.Misses)
}

func TestCachingPdfCheapIsDirect(t *testing.T) {
	x := model.NewRealVar("x", 0, 0, 10)

	data := model.NewDataSet("d", x)
	data.Add(1, 1)

	cp := NewCachingPdf(model.NewUniform("u", x), []*model.RealVar{x})
	cp.Eval(data)
	cp.Eval(data)

	assert.Equal(t, 0, cp.Stats().Hits)
	assert.Equal(t, 2, cp.Stats().Misses)
}
