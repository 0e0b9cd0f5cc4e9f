package cnll

import "errors"

// Configuration errors.
var (
	// ErrInvalidConfig indicates a configuration that failed validation.
	ErrInvalidConfig = errors.New("cnll: invalid configuration")

	// ErrInvalidProfilingMode indicates an unknown profiling mode name.
	ErrInvalidProfilingMode = errors.New("cnll: profiling mode must be one of all, unconstrained, poi, none")

	// ErrInvalidNLLBackend indicates an unknown NLL backend name.
	ErrInvalidNLLBackend = errors.New("cnll: nll backend must be one of combine, legacy, cpu, codegen")

	// ErrInvalidCrossingAlgorithm indicates an unknown crossing search name.
	ErrInvalidCrossingAlgorithm = errors.New("cnll: crossing algorithm must be one of legacy, new")
)

// Construction errors.
var (
	// ErrNilData indicates a nil dataset.
	ErrNilData = errors.New("cnll: data is nil")

	// ErrNoComponents indicates a channel without components.
	ErrNoComponents = errors.New("cnll: channel has no components")

	// ErrMultiObservableIntegral indicates a component that needs numeric
	// integration over more than one observable.
	ErrMultiObservableIntegral = errors.New("cnll: numeric integration needs exactly one observable")

	// ErrUnboundedObservable indicates numeric integration over an
	// observable without a finite range.
	ErrUnboundedObservable = errors.New("cnll: numeric integration needs a finite observable range")

	// ErrUnknownChannel indicates a channel name not in the model.
	ErrUnknownChannel = errors.New("cnll: unknown channel")

	// ErrNotCategorized indicates data that cannot be split by channel.
	ErrNotCategorized = errors.New("cnll: simultaneous data must carry index states")

	// ErrBinStats indicates Barlow-Beeston bins that do not match the
	// channel or its data.
	ErrBinStats = errors.New("cnll: bin statistics need an extended real-sum channel with one entry per bin")

	// ErrMaskCount indicates more masks than channels.
	ErrMaskCount = errors.New("cnll: more channel masks than channels")
)

// Fit errors.
var (
	// ErrMinimizationFailed indicates a failed initial minimisation.
	ErrMinimizationFailed = errors.New("cnll: minimization failed")
)
