package cnll

import (
	"fmt"
	"log/slog"

	"github.com/thalesfsp/cnll/model"
)

// SimNLL is the combined likelihood of a simultaneous model: the sum of
// the channel likelihoods and the constraint terms.
//
// Channels and constraint terms can be masked. Whenever the set of active
// masks changes, a masking offset is adjusted so that the value is
// continuous across the change. With no mask active the offset is zero and
// the value is exactly the sum of its parts minus their zero points.
//
// Not safe for concurrent use.
type SimNLL struct {
	model    *model.SimModel
	data     model.Categorized
	runtime  RuntimeConfig
	arena    *model.Workspace
	channels []*AddNLL
	terms    []*ConstraintTerm

	// Mask layout: one flag per channel, then one per constraint pdf.
	termOffset []int

	channelMasks      []*model.RealVar
	maskNonDiscrete   bool
	maskConstraints   bool
	lastMask          []bool
	maskingOffset     float64
	maskingOffsetZero float64

	hideCategories bool
	hideConstants  bool

	evalErrors int

	logger *slog.Logger
}

// NewSimNLL builds the combined likelihood of m over data. data is split
// by m.Index; channels without entries get an empty dataset.
//
// Parameters:
// - m: The simultaneous model; nil channels are skipped
// - data: Entries carrying an index state
// - rt: Runtime toggles, fixed for the life of the likelihood
// - opts: Logger, metrics and channel options
//
// Returns:
// - *SimNLL: The combined likelihood
// - error: ErrNotCategorized, ErrNilData or a channel construction error
//
// Usage example:
//
//	nll, err := cnll.NewSimNLL(m, data, cnll.DefaultConfig().Runtime)
//	if err != nil {
//	    return err
//	}
//
//	nll.SetZeroPoint()
//	fmt.Println(nll.Evaluate()) // 0
func NewSimNLL(m *model.SimModel, data model.Data, rt RuntimeConfig, opts ...Option) (*SimNLL, error) {
	if data == nil {
		return nil, ErrNilData
	}

	cd, ok := data.(model.Categorized)
	if !ok || m == nil || m.Index == nil {
		return nil, ErrNotCategorized
	}

	opts = append([]Option{WithRuntime(rt)}, opts...)
	o := newOptions(opts)

	s := &SimNLL{
		model:   m,
		data:    cd,
		runtime: rt,
		arena:   model.NewWorkspace(),
		logger:  o.logger,
	}

	split := model.SplitByCategory(cd, m.Index)

	s.channels = make([]*AddNLL, len(m.Channels))

	for i, ch := range m.Channels {
		if ch == nil || i >= len(split) {
			continue
		}

		name := ch.Name
		if name == "" {
			name = m.Index.StateName(i)
		}

		for _, comp := range ch.Components {
			if _, err := s.arena.AddPdf(comp.Pdf); err != nil {
				return nil, fmt.Errorf("channel %q: %w", name, err)
			}
		}

		a, err := NewAddNLL(name, ch, split[i], opts...)
		if err != nil {
			return nil, err
		}

		s.channels[i] = a
	}

	terms, err := classifyConstraints(s.arena, m.Constraints, rt.OptimizeConstraints)
	if err != nil {
		return nil, fmt.Errorf("constraints: %w", err)
	}

	s.terms = terms
	s.termOffset = make([]int, len(terms))

	off := len(s.channels)
	for i, t := range terms {
		s.termOffset[i] = off
		off += t.Len()
	}

	s.lastMask = s.currentMask()

	s.logger.Debug("combined likelihood ready",
		slog.Int("channels", len(s.channels)),
		slog.Int("constraintTerms", len(s.terms)),
		slog.Bool("optimizeConstraints", rt.OptimizeConstraints),
	)

	return s, nil
}

//////
// Evaluation.
//////

// Evaluate returns the combined value.
func (s *SimNLL) Evaluate() float64 {
	mask := s.currentMask()

	if !equalMask(mask, s.lastMask) {
		s.remask(mask)
	}

	return s.sum(mask, true) - (s.maskingOffset - s.maskingOffsetZero)
}

// sum adds the unmasked contributions under mask. Evaluation errors are
// logged only when count is set.
func (s *SimNLL) sum(mask []bool, count bool) float64 {
	var total float64

	for i, ch := range s.channels {
		if ch == nil || mask[i] {
			continue
		}

		errs := ch.evalErrors
		total += ch.Evaluate()

		if !count {
			ch.evalErrors = errs
		}
	}

	for i, t := range s.terms {
		v := t.value(s.termMask(mask, i)) - t.zeroPoint
		if count && isBad(v) {
			s.evalErrors++
		}

		total += v
	}

	return total
}

// remask moves the masking offset so the value is continuous across a
// change of the active masks. With no mask left the offset is dropped.
func (s *SimNLL) remask(mask []bool) {
	defer func() { s.lastMask = mask }()

	if !anyMask(mask) {
		s.maskingOffset, s.maskingOffsetZero = 0, 0

		return
	}

	prev := s.sum(s.lastMask, false) - (s.maskingOffset - s.maskingOffsetZero)
	s.maskingOffset = s.sum(mask, false) - prev + s.maskingOffsetZero

	s.logger.Debug("mask changed", slog.Float64("maskingOffset", s.maskingOffset))
}

// currentMask returns the active masks.
func (s *SimNLL) currentMask() []bool {
	n := len(s.channels)
	for _, t := range s.terms {
		n += t.Len()
	}

	mask := make([]bool, n)

	for i, ch := range s.channels {
		if ch == nil {
			continue
		}

		if i < len(s.channelMasks) && s.channelMasks[i] != nil && s.channelMasks[i].Val() != 0 {
			mask[i] = true
		}

		if s.maskNonDiscrete && len(ch.Categories()) == 0 {
			mask[i] = true
		}
	}

	if s.maskConstraints {
		for i, t := range s.terms {
			for j := 0; j < t.Len(); j++ {
				mask[s.termOffset[i]+j] = allConstant(t.memberParams(j))
			}
		}
	}

	return mask
}

func (s *SimNLL) termMask(mask []bool, i int) []bool {
	off := s.termOffset[i]

	return mask[off : off+s.terms[i].Len()]
}

//////
// Masks.
//////

// SetChannelMasks sets one mask variable per channel, in index order.
// Channel i is masked when masks[i] is non-zero. Fewer masks than channels
// leave the rest unmasked.
func (s *SimNLL) SetChannelMasks(masks []*model.RealVar) error {
	if len(masks) > len(s.channels) {
		return fmt.Errorf("%d masks for %d channels: %w", len(masks), len(s.channels), ErrMaskCount)
	}

	s.channelMasks = masks

	return nil
}

// SetMaskNonDiscreteChannels masks channels that do not depend on any
// category.
func (s *SimNLL) SetMaskNonDiscreteChannels(on bool) { s.maskNonDiscrete = on }

// SetMaskConstraints skips constraint pdfs whose parameters are all
// constant.
func (s *SimNLL) SetMaskConstraints(on bool) { s.maskConstraints = on }

// MaskingOffset returns the current masking offset and its zero point.
func (s *SimNLL) MaskingOffset() (offset, zero float64) {
	return s.maskingOffset, s.maskingOffsetZero
}

//////
// Zero points.
//////

// SetZeroPoint makes the current point evaluate to 0.
func (s *SimNLL) SetZeroPoint() {
	mask := s.currentMask()
	if !equalMask(mask, s.lastMask) {
		s.remask(mask)
	}

	for _, ch := range s.channels {
		if ch != nil {
			ch.SetZeroPoint()
		}
	}

	for i, t := range s.terms {
		t.zeroPoint = t.value(s.termMask(mask, i))
	}

	s.maskingOffsetZero = s.maskingOffset
}

// ClearZeroPoint removes every zero point.
func (s *SimNLL) ClearZeroPoint() {
	for _, ch := range s.channels {
		if ch != nil {
			ch.ClearZeroPoint()
		}
	}

	for _, t := range s.terms {
		t.zeroPoint = 0
	}

	s.maskingOffsetZero = 0
}

// UpdateZeroPoint is ClearZeroPoint followed by SetZeroPoint.
func (s *SimNLL) UpdateZeroPoint() {
	s.ClearZeroPoint()
	s.SetZeroPoint()
}

// ClearConstantZeroPoint removes the construction offsets of every channel.
func (s *SimNLL) ClearConstantZeroPoint() {
	for _, ch := range s.channels {
		if ch != nil {
			ch.ClearConstantZeroPoint()
		}
	}
}

//////
// Data.
//////

// SetData splits data by channel and swaps it into every channel.
func (s *SimNLL) SetData(data model.Data) error {
	if data == nil {
		return ErrNilData
	}

	cd, ok := data.(model.Categorized)
	if !ok {
		return ErrNotCategorized
	}

	split := model.SplitByCategory(cd, s.model.Index)

	for i, ch := range s.channels {
		if ch == nil {
			continue
		}

		if err := ch.SetData(split[i]); err != nil {
			return err
		}
	}

	s.data = cd

	return nil
}

// SetDataDirty forwards to every channel.
func (s *SimNLL) SetDataDirty() {
	for _, ch := range s.channels {
		if ch != nil {
			ch.SetDataDirty()
		}
	}
}

// SetIncludeZeroWeights records the policy on every channel. It takes
// effect at the next SetData.
func (s *SimNLL) SetIncludeZeroWeights(include bool) {
	for _, ch := range s.channels {
		if ch != nil {
			ch.SetIncludeZeroWeights(include)
		}
	}
}

// SetAnalyticBarlowBeeston forwards to every channel.
func (s *SimNLL) SetAnalyticBarlowBeeston(on bool) {
	for _, ch := range s.channels {
		if ch != nil {
			ch.SetAnalyticBarlowBeeston(on)
		}
	}
}

//////
// Parameters.
//////

// SetHideRooCategories hides categories from Categories.
func (s *SimNLL) SetHideRooCategories(hide bool) { s.hideCategories = hide }

// SetHideConstants hides constant variables from Parameters.
func (s *SimNLL) SetHideConstants(hide bool) { s.hideConstants = hide }

// Parameters returns the variables of the active channels and constraint
// terms. Analytically profiled variables are never reported.
func (s *SimNLL) Parameters() []*model.RealVar {
	mask := s.currentMask()
	groups := make([][]*model.RealVar, 0, len(s.channels)+len(s.terms))

	for i, ch := range s.channels {
		if ch != nil && !mask[i] {
			groups = append(groups, ch.Parameters())
		}
	}

	for i, t := range s.terms {
		skip := s.termMask(mask, i)
		for j := range skip {
			if !skip[j] {
				groups = append(groups, t.memberParams(j))
			}
		}
	}

	all := model.UniqueVars(groups...)
	out := all[:0:0]

	for _, v := range all {
		if v.IsAnalytic() || (s.hideConstants && v.IsConstant()) {
			continue
		}

		out = append(out, v)
	}

	return out
}

// Categories returns the categories of the active channels and the index.
func (s *SimNLL) Categories() []*model.Category {
	if s.hideCategories {
		return nil
	}

	mask := s.currentMask()
	groups := [][]*model.Category{{s.model.Index}}

	for i, ch := range s.channels {
		if ch != nil && !mask[i] {
			groups = append(groups, ch.Categories())
		}
	}

	return model.UniqueCategories(groups...)
}

//////
// Accessors.
//////

// Channels returns the channel likelihoods in index order. Entries for
// states without a model are nil.
func (s *SimNLL) Channels() []*AddNLL { return s.channels }

// Channel returns the channel likelihood called name.
func (s *SimNLL) Channel(name string) (*AddNLL, error) {
	for _, ch := range s.channels {
		if ch != nil && ch.Name() == name {
			return ch, nil
		}
	}

	return nil, fmt.Errorf("%q: %w", name, ErrUnknownChannel)
}

// Workspace returns the arena holding every channel component and
// constraint pdf of the model, addressed by index.
func (s *SimNLL) Workspace() *model.Workspace { return s.arena }

// ConstraintTerms returns the classified constraint terms.
func (s *SimNLL) ConstraintTerms() []*ConstraintTerm { return s.terms }

// Runtime returns the runtime toggles.
func (s *SimNLL) Runtime() RuntimeConfig { return s.runtime }

// NumEvalErrors returns the evaluation errors of the channels and the
// constraint terms. With NoDeepLEE the count is collapsed to 0 or 1.
func (s *SimNLL) NumEvalErrors() int {
	n := s.evalErrors

	for _, ch := range s.channels {
		if ch != nil {
			n += ch.NumEvalErrors()
		}
	}

	if s.runtime.NoDeepLEE && n > 0 {
		return 1
	}

	return n
}

// ClearEvalErrors resets every evaluation-error log.
func (s *SimNLL) ClearEvalErrors() {
	s.evalErrors = 0

	for _, ch := range s.channels {
		if ch != nil {
			ch.ClearEvalErrors()
		}
	}
}

//////
// Helper functions.
//////

func equalMask(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func anyMask(mask []bool) bool {
	for _, m := range mask {
		if m {
			return true
		}
	}

	return false
}
