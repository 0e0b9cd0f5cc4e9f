package model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

//////
// Interfaces.
//////

// Pdf is a probability density, possibly unnormalised, evaluated at the
// current values of its variables. Observables are ordinary RealVars that a
// dataset loads entry by entry before Value is called.
type Pdf interface {
	// Name identifies the pdf in logs and metrics.
	Name() string

	// Value returns the unnormalised density at the current variable values.
	Value() float64

	// Parameters returns every real variable the density reads, observables
	// included.
	Parameters() []*RealVar

	// Categories returns every discrete variable the density reads.
	Categories() []*Category
}

// AnalyticIntegrator is implemented by pdfs that can integrate themselves
// over a set of observables in closed form. ok is false when the given
// observables are not supported, in which case callers integrate
// numerically.
type AnalyticIntegrator interface {
	Integral(obs []*RealVar) (value float64, ok bool)
}

// Normalized is implemented by pdfs that know their normalised log density
// with respect to their own observable. Constraint terms use it.
type Normalized interface {
	LogProb() float64
}

// Cheap is implemented by pdfs whose evaluation costs less than a cache
// lookup.
type Cheap interface {
	Cheap() bool
}

//////
// Gaussian.
//////

// Gaussian is exp(-(x-mean)²/(2 sigma²)).
type Gaussian struct {
	name  string
	X     *RealVar
	Mean  *RealVar
	Sigma *RealVar
}

// NewGaussian creates a Gaussian density.
func NewGaussian(name string, x, mean, sigma *RealVar) *Gaussian {
	return &Gaussian{name: name, X: x, Mean: mean, Sigma: sigma}
}

func (g *Gaussian) Name() string { return g.name }

func (g *Gaussian) Value() float64 {
	z := (g.X.Val() - g.Mean.Val()) / g.Sigma.Val()

	return math.Exp(-0.5 * z * z)
}

func (g *Gaussian) Parameters() []*RealVar {
	return UniqueVars([]*RealVar{g.X, g.Mean, g.Sigma})
}

func (g *Gaussian) Categories() []*Category { return nil }

// Integral integrates over x, or over mean since the shape is symmetric.
func (g *Gaussian) Integral(obs []*RealVar) (float64, bool) {
	if len(obs) != 1 {
		return 0, false
	}

	var centre *RealVar

	switch obs[0] {
	case g.X:
		centre = g.Mean
	case g.Mean:
		centre = g.X
	default:
		return 0, false
	}

	sigma := g.Sigma.Val()
	n := distuv.Normal{Mu: centre.Val(), Sigma: sigma}

	return sigma * math.Sqrt(2*math.Pi) * (n.CDF(obs[0].Max()) - n.CDF(obs[0].Min())), true
}

// LogProb returns the normalised log density of x.
func (g *Gaussian) LogProb() float64 {
	return distuv.Normal{Mu: g.Mean.Val(), Sigma: g.Sigma.Val()}.LogProb(g.X.Val())
}

//////
// Poisson.
//////

// Poisson is the Poisson probability of observing N given Mean. N may be
// non-integer, as is common for global observables of constraint terms.
type Poisson struct {
	name string
	N    *RealVar
	Mean Real
}

// NewPoisson creates a Poisson density.
func NewPoisson(name string, n *RealVar, mean Real) *Poisson {
	return &Poisson{name: name, N: n, Mean: mean}
}

func (p *Poisson) Name() string { return p.name }

func (p *Poisson) Value() float64 { return math.Exp(p.LogProb()) }

func (p *Poisson) Parameters() []*RealVar {
	return UniqueVars([]*RealVar{p.N}, p.Mean.Parameters())
}

func (p *Poisson) Categories() []*Category { return nil }

// Integral over N is one.
func (p *Poisson) Integral(obs []*RealVar) (float64, bool) {
	if len(obs) == 1 && obs[0] == p.N {
		return 1, true
	}

	return 0, false
}

// LogProb returns n log(mu) - mu - log Γ(n+1).
func (p *Poisson) LogProb() float64 {
	return PoissonLogProb(p.N.Val(), p.Mean.Value())
}

// PoissonLogProb is the Poisson log probability extended to real n.
func PoissonLogProb(n, mu float64) float64 {
	lg, _ := math.Lgamma(n + 1)

	if n == 0 {
		return -mu - lg
	}

	if mu <= 0 {
		return math.Inf(-1)
	}

	return n*math.Log(mu) - mu - lg
}

//////
// Exponential.
//////

// Exponential is exp(c x).
type Exponential struct {
	name string
	X    *RealVar
	C    *RealVar
}

// NewExponential creates an exponential density.
func NewExponential(name string, x, c *RealVar) *Exponential {
	return &Exponential{name: name, X: x, C: c}
}

func (e *Exponential) Name() string { return e.name }

func (e *Exponential) Value() float64 { return math.Exp(e.C.Val() * e.X.Val()) }

func (e *Exponential) Parameters() []*RealVar {
	return UniqueVars([]*RealVar{e.X, e.C})
}

func (e *Exponential) Categories() []*Category { return nil }

func (e *Exponential) Integral(obs []*RealVar) (float64, bool) {
	if len(obs) != 1 || obs[0] != e.X {
		return 0, false
	}

	lo, hi, c := e.X.Min(), e.X.Max(), e.C.Val()
	if c == 0 {
		return hi - lo, true
	}

	return (math.Exp(c*hi) - math.Exp(c*lo)) / c, true
}

//////
// Uniform.
//////

// Uniform is flat over the range of X.
type Uniform struct {
	name string
	X    *RealVar
}

// NewUniform creates a flat density.
func NewUniform(name string, x *RealVar) *Uniform {
	return &Uniform{name: name, X: x}
}

func (u *Uniform) Name() string { return u.name }

func (u *Uniform) Value() float64 { return 1 }

func (u *Uniform) Parameters() []*RealVar { return []*RealVar{u.X} }

func (u *Uniform) Categories() []*Category { return nil }

func (u *Uniform) Cheap() bool { return true }

func (u *Uniform) Integral(obs []*RealVar) (float64, bool) {
	if len(obs) != 1 || obs[0] != u.X {
		return 0, false
	}

	return u.X.Max() - u.X.Min(), true
}

//////
// Histogram.
//////

// Histogram is a binned template. Value returns the bin density
// (content / width) of the bin containing X, zero outside.
type Histogram struct {
	name     string
	X        *RealVar
	Edges    []float64
	Contents []float64
}

// NewHistogram creates a template from len(contents)+1 ascending edges.
func NewHistogram(name string, x *RealVar, edges, contents []float64) *Histogram {
	return &Histogram{
		name:     name,
		X:        x,
		Edges:    append([]float64(nil), edges...),
		Contents: append([]float64(nil), contents...),
	}
}

func (h *Histogram) Name() string { return h.name }

func (h *Histogram) Value() float64 {
	b := h.bin(h.X.Val())
	if b < 0 {
		return 0
	}

	return h.Contents[b] / (h.Edges[b+1] - h.Edges[b])
}

func (h *Histogram) Parameters() []*RealVar { return []*RealVar{h.X} }

func (h *Histogram) Categories() []*Category { return nil }

// Integral sums the contents of the bins inside the range of X, with
// partial bins weighted by their overlap.
func (h *Histogram) Integral(obs []*RealVar) (float64, bool) {
	if len(obs) != 1 || obs[0] != h.X {
		return 0, false
	}

	lo, hi := h.X.Min(), h.X.Max()
	if lo <= h.Edges[0] && hi >= h.Edges[len(h.Edges)-1] {
		return floats.Sum(h.Contents), true
	}

	var sum float64

	for b, c := range h.Contents {
		l, r := math.Max(lo, h.Edges[b]), math.Min(hi, h.Edges[b+1])
		if r > l {
			sum += c * (r - l) / (h.Edges[b+1] - h.Edges[b])
		}
	}

	return sum, true
}

func (h *Histogram) bin(x float64) int {
	i := sort.SearchFloat64s(h.Edges, x)
	if i < len(h.Edges) && h.Edges[i] == x {
		if i == len(h.Edges)-1 {
			return -1
		}

		return i
	}

	if i == 0 || i == len(h.Edges) {
		return -1
	}

	return i - 1
}

//////
// MultiPdf.
//////

// MultiPdf is a discrete choice between alternative pdfs, selected by the
// state of Index.
type MultiPdf struct {
	name  string
	Index *Category
	Pdfs  []Pdf
}

// NewMultiPdf creates a discrete choice; Index must have len(pdfs) states.
func NewMultiPdf(name string, index *Category, pdfs ...Pdf) *MultiPdf {
	return &MultiPdf{name: name, Index: index, Pdfs: pdfs}
}

func (m *MultiPdf) Name() string { return m.name }

// Current returns the selected alternative.
func (m *MultiPdf) Current() Pdf { return m.Pdfs[m.Index.Index()] }

func (m *MultiPdf) Value() float64 { return m.Current().Value() }

func (m *MultiPdf) Parameters() []*RealVar {
	groups := make([][]*RealVar, 0, len(m.Pdfs))
	for _, p := range m.Pdfs {
		groups = append(groups, p.Parameters())
	}

	return UniqueVars(groups...)
}

func (m *MultiPdf) Categories() []*Category {
	groups := [][]*Category{{m.Index}}
	for _, p := range m.Pdfs {
		groups = append(groups, p.Categories())
	}

	return UniqueCategories(groups...)
}

func (m *MultiPdf) Integral(obs []*RealVar) (float64, bool) {
	if ai, ok := m.Current().(AnalyticIntegrator); ok {
		return ai.Integral(obs)
	}

	return 0, false
}

//////
// FuncPdf.
//////

// FuncPdf wraps an arbitrary function of its variables. It has no analytic
// integral.
type FuncPdf struct {
	name string
	fn   func() float64
	vars []*RealVar
	cats []*Category
}

// NewFuncPdf creates a pdf from fn, which must only read vars.
func NewFuncPdf(name string, fn func() float64, vars ...*RealVar) *FuncPdf {
	return &FuncPdf{name: name, fn: fn, vars: vars}
}

// WithCategories declares categories fn reads.
func (f *FuncPdf) WithCategories(cats ...*Category) *FuncPdf {
	f.cats = append(f.cats, cats...)

	return f
}

func (f *FuncPdf) Name() string { return f.name }

func (f *FuncPdf) Value() float64 { return f.fn() }

func (f *FuncPdf) Parameters() []*RealVar { return UniqueVars(f.vars) }

func (f *FuncPdf) Categories() []*Category { return f.cats }

//////
// Coefficients.
//////

// Product multiplies several reals, e.g. a signal strength and a nominal
// yield.
type Product struct {
	terms []Real
}

// NewProduct creates a product of terms.
func NewProduct(terms ...Real) *Product {
	return &Product{terms: terms}
}

func (p *Product) Value() float64 {
	v := 1.0
	for _, t := range p.terms {
		v *= t.Value()
	}

	return v
}

func (p *Product) Parameters() []*RealVar {
	groups := make([][]*RealVar, 0, len(p.terms))
	for _, t := range p.terms {
		groups = append(groups, t.Parameters())
	}

	return UniqueVars(groups...)
}
