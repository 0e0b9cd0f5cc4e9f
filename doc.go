// Package cnll provides a caching negative log-likelihood for simultaneous
// binned and unbinned fits, and an adaptive search for the points where a
// profiled likelihood crosses a confidence level.
//
// # Features
//
// The package includes the following key features:
//
//   - Values Cache: Per-pdf caches of up to three parameter points, so
//     minimisers alternating between nearby points skip recomputation
//   - Channel Likelihoods: Sums of normalised pdfs or of unnormalised
//     templates, extended or not, with Barlow-Beeston bin statistics
//   - Combined Likelihood: Channels plus constraint terms, with closed-form
//     Gaussian and Poisson constraints and value-continuous masking
//   - Zero Points: Offsets that keep the objective near zero during a fit
//   - Crossing Finder: Two strategies (legacy stepping, new sweep and refine)
//     to locate interval bounds on a profiled likelihood
//   - Fitter: A fit followed by 68% and 95% intervals of every parameter of
//     interest, with four profiling modes
//   - Progress Monitoring: Real-time search updates via channels
//   - Observability: slog diagnostics and OpenTelemetry counters
//
// # Installation
//
// To install the package, use:
//
//	go get github.com/thalesfsp/cnll
//
// # Building a Likelihood
//
// Models are described with the model package: variables, pdfs, channels
// and constraints. A combined likelihood is built over a dataset whose
// entries carry the state of the model index:
//
//	x := model.NewRealVar("x", 0, -5, 5)
//	mu := model.NewRealVar("mu", 1, 0, 10)
//	idx := model.NewCategory("channel", "sr")
//
//	ch := &model.Channel{
//	    Observables: []*model.RealVar{x},
//	    Components:  []model.Component{{Pdf: sig, Coef: model.NewProduct(mu, nSig)}},
//	    Form:        model.SumOfPdfs,
//	    Extended:    true,
//	}
//
//	nll, err := cnll.NewSimNLL(
//	    &model.SimModel{Index: idx, Channels: []*model.Channel{ch}},
//	    data,
//	    cnll.DefaultConfig().Runtime,
//	)
//
// # Finding Intervals
//
// FindCrossing scans a parameter from its best fit towards a bound:
//
//	minim := minimizer.New(nll)
//	minim.Minimize(0)
//
//	finder := cnll.NewCrossingFinder(cnll.DefaultConfig().Crossing)
//	hi := finder.FindCrossing(minim, nll, mu, nll.Evaluate()+0.5, mu.Val(), mu.Max())
//
// Fitter.DoFit runs the whole flow and reports every interval.
//
// # Configuration
//
// Config can be loaded from YAML or JSON with LoadConfig. The environment
// variables FITTER_NEW_CROSSING_ALGO, FITTER_DYN_STEP, FITTER_BOUND and
// FITTER_NEVER_GIVE_UP override the crossing settings.
//
//	crossing:
//	  algorithm: new
//	  tolerance: 0.0001
//	  stepSize: 0.1
//	runtime:
//	  optimizeConstraints: true
//	fit:
//	  profiling: all
//	  do95: true
//
// Recommended settings:
//   - Crossing tolerance: 1e-4 to 1e-3 (smaller = more minimisations)
//   - Step size: 0.05 to 0.2 of the search window
//   - Cache size: 3, unless memory per pdf is a concern
//
// # Thread Safety
//
// Likelihoods, pdfs and variables are owned by a single fit and are not
// safe for concurrent use. Independent fits over independent models may run
// concurrently. Progress channel sends never block.
package cnll
