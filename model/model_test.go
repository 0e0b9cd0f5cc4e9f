package model

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealVarClamps(t *testing.T) {
	v := NewRealVar("v", 20, 0, 10)
	assert.Equal(t, 10.0, v.Val())

	v.SetVal(-1)
	assert.Equal(t, 0.0, v.Val())

	v.SetRange(2, 1)
	assert.Equal(t, 1.0, v.Min())
	assert.Equal(t, 2.0, v.Max())
	assert.Equal(t, 1.0, v.Val())
	assert.True(t, v.HasFiniteRange())

	c := NewConst("c", 3)
	assert.True(t, c.IsConstant())
	assert.False(t, c.HasFiniteRange())
}

func TestUniqueAndWithoutVars(t *testing.T) {
	a := NewRealVar("a", 0, -1, 1)
	b := NewRealVar("b", 0, -1, 1)
	c := NewRealVar("c", 0, -1, 1)

	got := UniqueVars([]*RealVar{a, b, nil}, []*RealVar{b, c, a})
	assert.Equal(t, []*RealVar{a, b, c}, got)

	assert.Equal(t, []*RealVar{a, c}, WithoutVars(got, []*RealVar{b}))
}

func TestGaussianIntegral(t *testing.T) {
	x := NewRealVar("x", 0, -50, 50)
	g := NewGaussian("g", x, NewConst("m", 1), NewConst("s", 2))

	v, ok := g.Integral([]*RealVar{x})
	require.True(t, ok)
	assert.InDelta(t, 2*math.Sqrt(2*math.Pi), v, 1e-9)

	_, ok = g.Integral([]*RealVar{NewRealVar("y", 0, 0, 1)})
	assert.False(t, ok)

	x.SetVal(1)
	assert.InDelta(t, 1.0, g.Value(), 1e-12)
	assert.InDelta(t, -math.Log(2*math.Sqrt(2*math.Pi)), g.LogProb(), 1e-12)
}

func TestPoissonLogProb(t *testing.T) {
	assert.InDelta(t, -2.0, PoissonLogProb(0, 2), 1e-12)
	assert.InDelta(t, 3*math.Log(2)-2-math.Log(6), PoissonLogProb(3, 2), 1e-12)
	assert.True(t, math.IsInf(PoissonLogProb(3, 0), -1))
}

func TestHistogram(t *testing.T) {
	x := NewRealVar("x", 0.5, 0, 3)
	h := NewHistogram("h", x, []float64{0, 1, 3}, []float64{4, 6})

	assert.Equal(t, 4.0, h.Value())

	x.SetVal(2)
	assert.Equal(t, 3.0, h.Value())

	x.SetVal(3)
	assert.Equal(t, 0.0, h.Value())

	v, ok := h.Integral([]*RealVar{x})
	require.True(t, ok)
	assert.Equal(t, 10.0, v)

	x.SetRange(0, 2)
	v, _ = h.Integral([]*RealVar{x})
	assert.Equal(t, 7.0, v)
}

func TestMultiPdf(t *testing.T) {
	x := NewRealVar("x", 0.5, 0, 1)
	idx := NewCategory("pdfIndex", "flat", "exp")
	c := NewConst("c", 1)

	m := NewMultiPdf("multi", idx, NewUniform("u", x), NewExponential("e", x, c))

	assert.Equal(t, 1.0, m.Value())

	require.True(t, idx.SetIndex(1))
	assert.InDelta(t, math.Exp(0.5), m.Value(), 1e-12)
	assert.False(t, idx.SetIndex(2))
	assert.Equal(t, []*Category{idx}, m.Categories())
}

func TestSplitByCategory(t *testing.T) {
	x := NewRealVar("x", 0, 0, 10)
	idx := NewCategory("channel", "a", "b", "c")

	ds := NewDataSet("all", x)
	ds.AddIn(0, 1, 1, 1)
	ds.AddIn(1, 2, 1, 2)
	ds.AddIn(0, 3, 1, 3)

	split := SplitByCategory(ds, idx)
	require.Len(t, split, 3)

	assert.Equal(t, 2, split[0].NumEntries())
	assert.Equal(t, 1, split[1].NumEntries())
	assert.Equal(t, 0, split[2].NumEntries())
	assert.Equal(t, 4.0, split[0].SumWeights())
	assert.False(t, split[0].IsBinned())

	split[0].Load(1)
	assert.Equal(t, 3.0, x.Val())

	binned := NewDataSet("binned", x)
	binned.AddBin(5, 0.5, 1)

	assert.True(t, SplitByCategory(binned, idx)[0].IsBinned())
	assert.Equal(t, 0.5, SplitByCategory(binned, idx)[0].BinWidth(0))
}

func TestSnapshotAndFitResult(t *testing.T) {
	a := NewRealVar("a", 1, -5, 5)
	b := NewRealVar("b", 2, -5, 5)
	b.SetConstant(true)

	res := NewFitResult([]*RealVar{a, b}, 0.5, 0)

	a.SetVal(4)
	b.SetVal(-4)

	res.FloatParsFinal.Restore()
	assert.Equal(t, 1.0, a.Val())
	assert.Equal(t, -4.0, b.Val())

	res.ConstPars.Restore()
	assert.Equal(t, 2.0, b.Val())

	p, ok := res.Find("b")
	require.True(t, ok)
	assert.True(t, p.Constant)

	_, ok = res.Find("z")
	assert.False(t, ok)

	want := Snapshot{{Var: a, Val: 1}}
	if diff := cmp.Diff(want, res.FloatParsFinal, cmp.Comparer(func(x, y *RealVar) bool { return x == y })); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestWorkspace(t *testing.T) {
	w := NewWorkspace()

	x := w.Var("x", 0, -1, 1)
	assert.Same(t, x, w.Var("x", 5, 0, 10))

	u := NewUniform("u", x)

	i, err := w.AddPdf(u)
	require.NoError(t, err)

	again, err := w.AddPdf(u)
	require.NoError(t, err)
	assert.Equal(t, i, again)
	assert.Equal(t, 1, w.NumPdfs())

	_, err = w.AddPdf(NewUniform("u", x))
	assert.ErrorIs(t, err, ErrDuplicatePdf)

	p, ok := w.PdfByName("u")
	require.True(t, ok)
	assert.Equal(t, "u", p.Name())

	SetAllConstant(w.AllVars(), true)
	assert.True(t, x.IsConstant())
}
