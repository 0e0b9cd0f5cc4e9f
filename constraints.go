package cnll

import (
	"math"

	"github.com/thalesfsp/cnll/model"
)

// ConstraintKind tags the evaluation path of a constraint term.
type ConstraintKind int

const (
	// GaussianTerm is a Gaussian with constant width, evaluated in closed
	// form.
	GaussianTerm ConstraintKind = iota

	// PoissonTerm is a Poisson with constant observed count, evaluated in
	// closed form.
	PoissonTerm

	// GroupTerm evaluates -Σ log p over arbitrary pdfs.
	GroupTerm
)

func (k ConstraintKind) String() string {
	switch k {
	case GaussianTerm:
		return "gaussian"
	case PoissonTerm:
		return "poisson"
	case GroupTerm:
		return "group"
	default:
		return "unknown"
	}
}

// EdgeTag records whether a term owns the state it evaluates from or
// borrows it from the model workspace.
type EdgeTag int

const (
	// Owned terms keep a private copy of the frozen values they need.
	Owned EdgeTag = iota

	// Borrowed terms read their pdfs from the workspace on every
	// evaluation.
	Borrowed
)

// ConstraintTerm is one auxiliary term of the combined likelihood.
type ConstraintTerm struct {
	kind ConstraintKind
	edge EdgeTag

	// Gaussian
	x, mean *model.RealVar
	sigma   float64
	logNorm float64

	// Poisson
	n    float64
	mu   model.Real
	lgam float64

	// Group
	arena   *model.Workspace
	members []groupMember

	// refs holds the workspace index of every pdf of the term.
	refs []int

	params    []*model.RealVar
	zeroPoint float64
}

type groupMember struct {
	ref    int
	norm   *integral
	params []*model.RealVar
}

// Kind returns the evaluation path.
func (t *ConstraintTerm) Kind() ConstraintKind { return t.kind }

// Edge returns the ownership tag.
func (t *ConstraintTerm) Edge() EdgeTag { return t.edge }

// Parameters returns the variables the term depends on.
func (t *ConstraintTerm) Parameters() []*model.RealVar { return t.params }

// PdfIndex returns the workspace index of pdf j of the term.
func (t *ConstraintTerm) PdfIndex(j int) int { return t.refs[j] }

// Len returns the number of constraint pdfs the term evaluates.
func (t *ConstraintTerm) Len() int {
	if t.kind == GroupTerm {
		return len(t.members)
	}

	return 1
}

// value returns the term contribution without its zero point. skip holds
// one flag per pdf of the term; flagged pdfs contribute nothing.
func (t *ConstraintTerm) value(skip []bool) float64 {
	switch t.kind {
	case GaussianTerm:
		if skip[0] {
			return 0
		}

		z := (t.x.Val() - t.mean.Val()) / t.sigma

		return 0.5*z*z + t.logNorm
	case PoissonTerm:
		if skip[0] {
			return 0
		}

		mu := t.mu.Value()
		if t.n == 0 {
			return mu + t.lgam
		}

		if !(mu > 0) {
			return math.Inf(1)
		}

		return mu - t.n*math.Log(mu) + t.lgam
	default:
		var sum float64

		for j, m := range t.members {
			if skip[j] {
				continue
			}

			sum -= m.logProb(t.arena.Pdf(m.ref))
		}

		return sum
	}
}

// memberParams returns the variables of pdf j of the term.
func (t *ConstraintTerm) memberParams(j int) []*model.RealVar {
	if t.kind == GroupTerm {
		return t.members[j].params
	}

	return t.params
}

func (m groupMember) logProb(pdf model.Pdf) float64 {
	if lp, ok := pdf.(model.Normalized); ok {
		return lp.LogProb()
	}

	v := pdf.Value()
	if m.norm != nil {
		v /= m.norm.Value()
	}

	return math.Log(v)
}

//////
// Factory.
//////

// classifyConstraints registers every constraint pdf in arena and splits
// the constraints into closed-form terms and one group holding the rest.
// With optimize false everything goes to the group.
func classifyConstraints(arena *model.Workspace, cs []model.Constraint, optimize bool) ([]*ConstraintTerm, error) {
	var (
		terms []*ConstraintTerm
		group = &ConstraintTerm{kind: GroupTerm, edge: Borrowed, arena: arena}
	)

	for _, c := range cs {
		ref, err := arena.AddPdf(c.Pdf)
		if err != nil {
			return nil, err
		}

		if optimize {
			if t := fastGaussian(c); t != nil {
				t.refs = []int{ref}
				terms = append(terms, t)

				continue
			}

			if t := fastPoisson(c); t != nil {
				t.refs = []int{ref}
				terms = append(terms, t)

				continue
			}
		}

		m := groupMember{ref: ref, params: c.Pdf.Parameters()}

		if _, ok := c.Pdf.(model.Normalized); !ok && c.Observable != nil {
			in, err := newIntegral(c.Pdf, []*model.RealVar{c.Observable})
			if err != nil {
				return nil, err
			}

			m.norm = in
		}

		group.members = append(group.members, m)
		group.refs = append(group.refs, ref)
		group.params = model.UniqueVars(group.params, m.params)
	}

	if len(group.members) > 0 {
		terms = append(terms, group)
	}

	return terms, nil
}

func fastGaussian(c model.Constraint) *ConstraintTerm {
	g, ok := c.Pdf.(*model.Gaussian)
	if !ok || !g.Sigma.IsConstant() {
		return nil
	}

	if c.Observable != nil && c.Observable != g.X && c.Observable != g.Mean {
		return nil
	}

	sigma := g.Sigma.Val()

	return &ConstraintTerm{
		kind:    GaussianTerm,
		edge:    Owned,
		x:       g.X,
		mean:    g.Mean,
		sigma:   sigma,
		logNorm: math.Log(sigma * math.Sqrt(2*math.Pi)),
		params:  g.Parameters(),
	}
}

func fastPoisson(c model.Constraint) *ConstraintTerm {
	p, ok := c.Pdf.(*model.Poisson)
	if !ok || !p.N.IsConstant() {
		return nil
	}

	if c.Observable != nil && c.Observable != p.N {
		return nil
	}

	n := p.N.Val()
	lg, _ := math.Lgamma(n + 1)

	return &ConstraintTerm{
		kind:   PoissonTerm,
		edge:   Owned,
		n:      n,
		mu:     p.Mean,
		lgam:   lg,
		params: p.Parameters(),
	}
}
