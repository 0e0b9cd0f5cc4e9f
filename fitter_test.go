package cnll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thalesfsp/cnll/minimizer"
	"github.com/thalesfsp/cnll/model"
)

// countingExperiment is a flat signal of 10·mu events over a flat
// background of 5 events with 25 observed events, so that mu = 2 at the
// minimum.
func countingExperiment(t *testing.T) (*SimNLL, *model.RealVar) {
	t.Helper()

	x := model.NewRealVar("x", 0, 0, 10)
	mu := model.NewRealVar("mu", 1, 0, 10)
	index := model.NewCategory("channel", "sr")

	ch := &model.Channel{
		Name:        "sr",
		Observables: []*model.RealVar{x},
		Components: []model.Component{
			{Pdf: model.NewUniform("sig", x), Coef: model.NewProduct(mu, model.NewConst("nomS", 10))},
			{Pdf: model.NewUniform("bkg", x), Coef: model.NewConst("nB", 5)},
		},
		Extended: true,
	}

	data := model.NewDataSet("obs", x)
	for i := 0; i < 25; i++ {
		data.AddIn(0, 1, 1, 0.4*float64(i))
	}

	nll, err := NewSimNLL(&model.SimModel{Index: index, Channels: []*model.Channel{ch}}, data,
		DefaultConfig().Runtime, WithLogger(quietLogger()), WithMetrics(nil))
	require.NoError(t, err)

	return nll, mu
}

func newTestFitter() *Fitter {
	f := NewFitter(DefaultConfig(), quietLogger(), nil)
	f.Crossing.Logger = quietLogger()

	return f
}

func TestDeltaNLL(t *testing.T) {
	assert.InDelta(t, 0.494475, DeltaNLL(CL68, 1), 1e-4)
	assert.InDelta(t, 1.920729, DeltaNLL(CL95, 1), 1e-4)
	assert.InDelta(t, 1.139434, DeltaNLL(CL68, 2), 1e-4)
	assert.Equal(t, DeltaNLL(CL68, 1), DeltaNLL(CL68, 0))
}

func TestDoFitRobust(t *testing.T) {
	nll, mu := countingExperiment(t)
	minim := minimizer.New(nll, minimizer.WithLogger(quietLogger()))

	opts := DefaultConfig().Fit
	opts.Do95 = true
	opts.SaveNLL = true

	out, err := newTestFitter().DoFit(nll, minim, []*model.RealVar{mu}, nil, opts)
	require.NoError(t, err)
	require.Len(t, out.Intervals, 1)

	iv := out.Intervals[0]
	assert.Equal(t, "mu", iv.Name)
	assert.InDelta(t, 2, iv.Best, 2e-2)
	assert.InDelta(t, 1.5352, iv.Lo68, 2e-2)
	assert.InDelta(t, 2.5307, iv.Hi68, 2e-2)
	assert.InDelta(t, 1.1437, iv.Lo95, 2e-2)
	assert.InDelta(t, 3.1120, iv.Hi95, 2e-2)
	assert.True(t, iv.Found68)
	assert.True(t, iv.Found95)

	assert.Less(t, out.NLL, 0.0)
	assert.InDelta(t, iv.Best, mu.Val(), 1e-12, "left at the best fit")
	assert.False(t, mu.IsConstant())
	assert.InDelta(t, iv.Hi68-iv.Best, mu.AsymErrorHi(), 1e-12)

	_, found := out.Result.Find("mu")
	assert.True(t, found)
}

func TestDoFitMinos(t *testing.T) {
	nll, mu := countingExperiment(t)
	minim := minimizer.New(nll, minimizer.WithLogger(quietLogger()))

	opts := DefaultConfig().Fit
	opts.Robust = false
	opts.Do95 = true
	opts.DoHesse = true

	out, err := newTestFitter().DoFit(nll, minim, []*model.RealVar{mu}, nil, opts)
	require.NoError(t, err)

	iv := out.Intervals[0]
	assert.InDelta(t, 1.5352, iv.Lo68, 2e-2)
	assert.InDelta(t, 2.5307, iv.Hi68, 2e-2)
	assert.InDelta(t, 1.1437, iv.Lo95, 2e-2)
	assert.InDelta(t, 3.1120, iv.Hi95, 2e-2)
	assert.True(t, iv.Found68)
	assert.Greater(t, mu.Err(), 0.0)
}

func TestDoFitFailure(t *testing.T) {
	nll, mu := countingExperiment(t)

	_, err := newTestFitter().DoFit(nll, &stubMinimizer{fail: true, obj: nll}, []*model.RealVar{mu}, nil, DefaultConfig().Fit)
	assert.ErrorIs(t, err, ErrMinimizationFailed)

	opts := DefaultConfig().Fit
	opts.KeepFailures = true
	opts.Robust = false

	out, err := newTestFitter().DoFit(nll, &stubMinimizer{fail: true, obj: nll}, []*model.RealVar{mu}, nil, opts)
	require.NoError(t, err)
	assert.False(t, out.Intervals[0].Found68)
	assert.Equal(t, out.Intervals[0].Best, out.Intervals[0].Hi68)
}

func TestFrozenByProfilingMode(t *testing.T) {
	f := newTwoChannels()
	nll := f.nll(t, DefaultConfig().Runtime)

	pois := []*model.RealVar{f.mu}
	nuisances := []*model.RealVar{f.slope, f.nB, f.nC}

	fitter := newTestFitter()

	assert.Nil(t, fitter.frozen(nll, f.mu, pois, nuisances, ProfileAll))
	assert.Equal(t, []*model.RealVar{f.slope, f.nC}, fitter.frozen(nll, f.mu, pois, nuisances, ProfileUnconstrained))
	assert.Equal(t, nuisances, fitter.frozen(nll, f.mu, pois, nuisances, ProfilePOI))
	assert.Equal(t, nuisances, fitter.frozen(nll, f.mu, pois, nuisances, ProfileNone))
}

func TestFreezeReleasesOnlyWhatItFroze(t *testing.T) {
	a := model.NewRealVar("a", 0, -1, 1)
	b := model.NewConst("b", 1)

	release := freeze([]*model.RealVar{a, b})
	assert.True(t, a.IsConstant())

	release()
	assert.False(t, a.IsConstant())
	assert.True(t, b.IsConstant())
}

func TestPOIIntervalString(t *testing.T) {
	iv := POIInterval{Name: "mu", Best: 2, Lo68: 1.5, Hi68: 2.5}

	assert.Equal(t, "mu = 2 -0.5/+0.5 (68%)", iv.String())
}
