package model

// Form selects how the components of a channel are combined.
type Form int

const (
	// SumOfPdfs normalises every component over the observables and sums
	// them with coefficients as fractions (or yields when extended).
	SumOfPdfs Form = iota

	// RealSum sums unnormalised templates weighted by coefficients; the
	// channel normalisation is the sum of coefficient times integral.
	RealSum
)

func (f Form) String() string {
	switch f {
	case SumOfPdfs:
		return "sum-of-pdfs"
	case RealSum:
		return "real-sum"
	default:
		return "unknown"
	}
}

// Component is one term of a channel.
type Component struct {
	Pdf  Pdf
	Coef Real
}

// BinStat describes the template statistical uncertainty of one bin: the
// expected yield of the bin is scaled by Gamma, constrained to one with a
// relative uncertainty RelErr.
type BinStat struct {
	Gamma  *RealVar
	RelErr float64
}

// Channel is the model of one category of a simultaneous fit.
type Channel struct {
	Name        string
	Observables []*RealVar
	Components  []Component
	Form        Form
	Extended    bool

	// BinStats, when set, holds one entry per dataset bin. Only valid for
	// extended RealSum channels.
	BinStats []BinStat
}

// Constraint is an auxiliary term of the likelihood: the pdf evaluated at
// its global observable, which stays constant during a fit.
type Constraint struct {
	Pdf        Pdf
	Observable *RealVar
}

// SimModel is a simultaneous model: one channel per state of Index plus
// constraint terms. Channels may be nil for states without a model.
type SimModel struct {
	Index       *Category
	Channels    []*Channel
	Constraints []Constraint
}
