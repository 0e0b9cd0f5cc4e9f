package model

import (
	"gonum.org/v1/gonum/floats"
)

// Data is a weighted set of entries over a list of observables.
type Data interface {
	// NumEntries returns the number of entries (events or bins).
	NumEntries() int

	// Weight returns the weight of entry i.
	Weight(i int) float64

	// Load writes the observable values of entry i into the observables.
	Load(i int)

	// Observables returns the variables Load writes.
	Observables() []*RealVar
}

// Binned is implemented by datasets whose entries are bins.
type Binned interface {
	BinWidth(i int) float64
}

// Categorized is implemented by datasets whose entries belong to states of
// an index category.
type Categorized interface {
	Data
	State(i int) int
}

// DataSet is an in-memory dataset. Entries may carry a bin width and the
// state of an index category.
type DataSet struct {
	name    string
	obs     []*RealVar
	rows    [][]float64
	weights []float64
	widths  []float64
	states  []int
	binned  bool
}

// NewDataSet creates an empty dataset over obs.
func NewDataSet(name string, obs ...*RealVar) *DataSet {
	return &DataSet{name: name, obs: obs}
}

// Name returns the dataset name.
func (d *DataSet) Name() string { return d.name }

// Add appends an unbinned entry. values follow the observable order.
func (d *DataSet) Add(weight float64, values ...float64) {
	d.AddIn(0, weight, 1, values...)
}

// AddBin appends a bin entry with the given width.
func (d *DataSet) AddBin(weight, width float64, values ...float64) {
	d.binned = true
	d.AddIn(0, weight, width, values...)
}

// AddIn appends an entry belonging to the given index state.
func (d *DataSet) AddIn(state int, weight, width float64, values ...float64) {
	row := make([]float64, len(d.obs))
	copy(row, values)

	d.rows = append(d.rows, row)
	d.weights = append(d.weights, weight)
	d.widths = append(d.widths, width)
	d.states = append(d.states, state)
}

func (d *DataSet) NumEntries() int { return len(d.rows) }

func (d *DataSet) Weight(i int) float64 { return d.weights[i] }

func (d *DataSet) Load(i int) {
	for j, v := range d.obs {
		v.load(d.rows[i][j])
	}
}

func (d *DataSet) Observables() []*RealVar { return d.obs }

// BinWidth returns the width of entry i, one for unbinned entries.
func (d *DataSet) BinWidth(i int) float64 { return d.widths[i] }

// IsBinned reports whether any entry was added with AddBin.
func (d *DataSet) IsBinned() bool { return d.binned }

// State returns the index state of entry i.
func (d *DataSet) State(i int) int { return d.states[i] }

// SumWeights returns the total weight.
func (d *DataSet) SumWeights() float64 { return floats.Sum(d.weights) }

// SplitByCategory splits data into one dataset per state of index. States
// without entries get an empty dataset, so the result always has
// index.NumStates() elements.
func SplitByCategory(data Categorized, index *Category) []*DataSet {
	obs := data.Observables()
	out := make([]*DataSet, index.NumStates())

	for s := range out {
		out[s] = NewDataSet(index.StateName(s), obs...)
	}

	binned, _ := data.(Binned)
	if ds, ok := data.(*DataSet); ok && !ds.binned {
		binned = nil
	}

	for i, n := 0, data.NumEntries(); i < n; i++ {
		s := data.State(i)
		if s < 0 || s >= len(out) {
			continue
		}

		data.Load(i)

		values := make([]float64, len(obs))
		for j, v := range obs {
			values[j] = v.Val()
		}

		width := 1.0
		if binned != nil {
			width = binned.BinWidth(i)
			out[s].binned = true
		}

		out[s].AddIn(s, data.Weight(i), width, values...)
	}

	return out
}
