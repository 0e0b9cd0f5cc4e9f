package model

import (
	"errors"
	"fmt"
)

// ErrDuplicatePdf is returned when two different pdfs share a name.
var ErrDuplicatePdf = errors.New("model: pdf already defined")

// Workspace is an arena of variables, categories and pdfs addressed by
// index. Components refer to each other through the arena instead of
// holding ownership of one another.
type Workspace struct {
	vars  []*RealVar
	cats  []*Category
	pdfs  []Pdf
	names map[string]int
}

// NewWorkspace creates an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{names: make(map[string]int)}
}

// Var returns the variable called name, creating it with the given value
// and range if it does not exist yet.
func (w *Workspace) Var(name string, val, min, max float64) *RealVar {
	if i, ok := w.names["var:"+name]; ok {
		return w.vars[i]
	}

	v := NewRealVar(name, val, min, max)
	w.names["var:"+name] = len(w.vars)
	w.vars = append(w.vars, v)

	return v
}

// Const returns the constant called name, creating it if needed.
func (w *Workspace) Const(name string, val float64) *RealVar {
	if i, ok := w.names["var:"+name]; ok {
		return w.vars[i]
	}

	v := NewConst(name, val)
	w.names["var:"+name] = len(w.vars)
	w.vars = append(w.vars, v)

	return v
}

// Cat returns the category called name, creating it if needed.
func (w *Workspace) Cat(name string, states ...string) *Category {
	if i, ok := w.names["cat:"+name]; ok {
		return w.cats[i]
	}

	c := NewCategory(name, states...)
	w.names["cat:"+name] = len(w.cats)
	w.cats = append(w.cats, c)

	return c
}

// AddPdf registers p and returns its index. Adding the same pdf again
// returns its existing index; a different pdf with the same name is an
// error.
func (w *Workspace) AddPdf(p Pdf) (int, error) {
	key := "pdf:" + p.Name()
	if i, ok := w.names[key]; ok {
		if w.pdfs[i] == p {
			return i, nil
		}

		return -1, fmt.Errorf("%q: %w", p.Name(), ErrDuplicatePdf)
	}

	w.names[key] = len(w.pdfs)
	w.pdfs = append(w.pdfs, p)

	return len(w.pdfs) - 1, nil
}

// Pdf returns the pdf at index i.
func (w *Workspace) Pdf(i int) Pdf { return w.pdfs[i] }

// NumPdfs returns the number of registered pdfs.
func (w *Workspace) NumPdfs() int { return len(w.pdfs) }

// PdfByName returns the pdf called name.
func (w *Workspace) PdfByName(name string) (Pdf, bool) {
	i, ok := w.names["pdf:"+name]
	if !ok {
		return nil, false
	}

	return w.pdfs[i], true
}

// LookupVar returns the variable called name.
func (w *Workspace) LookupVar(name string) (*RealVar, bool) {
	i, ok := w.names["var:"+name]
	if !ok {
		return nil, false
	}

	return w.vars[i], true
}

// AllVars returns every variable in creation order.
func (w *Workspace) AllVars() []*RealVar { return w.vars }

// AllCats returns every category in creation order.
func (w *Workspace) AllCats() []*Category { return w.cats }

// SetAllConstant freezes or releases vars.
func SetAllConstant(vars []*RealVar, constant bool) {
	for _, v := range vars {
		v.SetConstant(constant)
	}
}
