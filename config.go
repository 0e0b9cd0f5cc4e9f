package cnll

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//////
// Const, vars, types.
//////

// CrossingAlgorithm selects the crossing search strategy.
type CrossingAlgorithm string

const (
	// CrossingLegacy steps with checkpoints and shrinking steps.
	CrossingLegacy CrossingAlgorithm = "legacy"

	// CrossingNew sweeps without profiling, then profiles and refines.
	CrossingNew CrossingAlgorithm = "new"
)

// ProfilingMode selects which parameters float while scanning a POI.
type ProfilingMode string

const (
	// ProfileAll floats every nuisance parameter.
	ProfileAll ProfilingMode = "all"

	// ProfileUnconstrained floats only parameters without a constraint term.
	ProfileUnconstrained ProfilingMode = "unconstrained"

	// ProfilePOI floats the other POIs and freezes every nuisance.
	ProfilePOI ProfilingMode = "poi"

	// ProfileNone freezes everything but the scanned POI.
	ProfileNone ProfilingMode = "none"
)

// NLLBackend selects how the likelihood is evaluated.
type NLLBackend string

const (
	// BackendCombine caches evaluations and evaluates constraints in closed
	// form.
	BackendCombine NLLBackend = "combine"

	// BackendLegacy, BackendCPU and BackendCodegen evaluate every pdf on each
	// call, without the closed-form constraint paths.
	BackendLegacy  NLLBackend = "legacy"
	BackendCPU     NLLBackend = "cpu"
	BackendCodegen NLLBackend = "codegen"
)

// Environment variables overriding the crossing configuration.
const (
	EnvNewCrossingAlgo = "FITTER_NEW_CROSSING_ALGO"
	EnvDynamicStep     = "FITTER_DYN_STEP"
	EnvBound           = "FITTER_BOUND"
	EnvNeverGiveUp     = "FITTER_NEVER_GIVE_UP"
)

// CrossingConfig controls FindCrossing.
type CrossingConfig struct {
	// Algorithm is "legacy" or "new".
	Algorithm CrossingAlgorithm `json:"algorithm" yaml:"algorithm" validate:"oneof=legacy new"`

	// Tolerance on the objective at the crossing.
	Tolerance float64 `json:"tolerance" yaml:"tolerance" validate:"gt=0"`

	// StepSize is the initial step as a fraction of the search window.
	StepSize float64 `json:"stepSize" yaml:"stepSize" validate:"gt=0,lte=1"`

	// MaxFailedSteps bounds consecutive failed minimisations (legacy).
	MaxFailedSteps int `json:"maxFailedSteps" yaml:"maxFailedSteps" validate:"gte=1"`

	// KeepFailures accepts failed minimisations as if they succeeded
	// (legacy).
	KeepFailures bool `json:"keepFailures" yaml:"keepFailures"`

	// DynamicStep adapts the step from the last two objective values
	// (legacy).
	DynamicStep bool `json:"dynamicStep" yaml:"dynamicStep"`

	// Bounded keeps the sweep inside the window until a crossing is
	// bracketed (new).
	Bounded bool `json:"bounded" yaml:"bounded"`

	// NeverGiveUp continues after a failed profiling step (new).
	NeverGiveUp bool `json:"neverGiveUp" yaml:"neverGiveUp"`

	// ReturnApproximate returns the last point instead of NaN when the
	// search does not converge (new).
	ReturnApproximate bool `json:"returnApproximate" yaml:"returnApproximate"`

	// MaxSweepSteps bounds the unprofiled steps of one sweep (new).
	MaxSweepSteps int `json:"maxSweepSteps" yaml:"maxSweepSteps" validate:"gte=1"`

	// MinimizerAlgorithm, MinimizerTolerance and MinimizerStrategy are set on
	// the minimizer for the duration of a search.
	MinimizerAlgorithm string  `json:"minimizerAlgorithm" yaml:"minimizerAlgorithm" validate:"omitempty,oneof=neldermead bfgs lbfgs"`
	MinimizerTolerance float64 `json:"minimizerTolerance" yaml:"minimizerTolerance" validate:"gt=0"`
	MinimizerStrategy  int     `json:"minimizerStrategy" yaml:"minimizerStrategy" validate:"gte=0,lte=2"`

	// Quiet silences diagnostics below Error during a search.
	Quiet bool `json:"quiet" yaml:"quiet"`
}

// RuntimeConfig holds evaluation toggles. It is copied into a likelihood at
// construction and never changes afterwards.
type RuntimeConfig struct {
	// NoDeepLEE collapses the evaluation-error count to a flag.
	NoDeepLEE bool `json:"noDeepLEE" yaml:"noDeepLEE"`

	// OptimizeConstraints evaluates Gaussian and Poisson constraints in
	// closed form.
	OptimizeConstraints bool `json:"optimizeConstraints" yaml:"optimizeConstraints"`

	// DirectMode bypasses every values cache.
	DirectMode bool `json:"directMode" yaml:"directMode"`

	// CacheSize is the number of cache slots per pdf, 0 for the maximum.
	CacheSize int `json:"cacheSize" yaml:"cacheSize" validate:"gte=0,lte=3"`
}

// FitOptions controls Fitter.DoFit.
type FitOptions struct {
	Profiling    ProfilingMode `json:"profiling" yaml:"profiling" validate:"oneof=all unconstrained poi none"`
	Do95         bool          `json:"do95" yaml:"do95"`
	KeepFailures bool          `json:"keepFailures" yaml:"keepFailures"`
	SaveNLL      bool          `json:"saveNLL" yaml:"saveNLL"`
	DoHesse      bool          `json:"doHesse" yaml:"doHesse"`

	// NDim is the number of degrees of freedom of the interval thresholds,
	// 0 meaning 1.
	NDim int `json:"ndim" yaml:"ndim" validate:"gte=0"`

	// Robust uses FindCrossing for the intervals instead of Minos.
	Robust bool `json:"robust" yaml:"robust"`

	Verbosity int `json:"verbosity" yaml:"verbosity" validate:"gte=0"`
}

// Config is the complete configuration.
type Config struct {
	Crossing   CrossingConfig `json:"crossing" yaml:"crossing"`
	Runtime    RuntimeConfig  `json:"runtime" yaml:"runtime"`
	Fit        FitOptions     `json:"fit" yaml:"fit"`
	NLLBackend NLLBackend     `json:"nllBackend" yaml:"nllBackend" validate:"oneof=combine legacy cpu codegen"`
	LogLevel   string         `json:"logLevel" yaml:"logLevel" validate:"oneof=debug info warn error"`
}

var validate = validator.New()

//////
// Exported functionalities.
//////

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Crossing: CrossingConfig{
			Algorithm:          CrossingLegacy,
			Tolerance:          1e-4,
			StepSize:           0.1,
			MaxFailedSteps:     5,
			Bounded:            true,
			ReturnApproximate:  true,
			MaxSweepSteps:      1000,
			MinimizerAlgorithm: "neldermead",
			MinimizerTolerance: 0.1,
			MinimizerStrategy:  0,
			Quiet:              true,
		},
		Runtime: RuntimeConfig{
			OptimizeConstraints: true,
			CacheSize:           MaxCacheSlots,
		},
		Fit: FitOptions{
			Profiling: ProfileAll,
			Robust:    true,
		},
		NLLBackend: BackendCombine,
		LogLevel:   "info",
	}
}

// LoadConfig reads a YAML or JSON file over DefaultConfig, applies the
// FITTER_* environment overrides and validates the result. A missing file
// yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err == nil {
		if yerr := yaml.Unmarshal(data, &cfg); yerr != nil {
			if jerr := json.Unmarshal(data, &cfg); jerr != nil {
				return cfg, fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", yerr, jerr)
			}
		}
	}

	applyEnv(&cfg.Crossing)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

// EffectiveRuntime returns the runtime toggles implied by the backend.
// Backends other than combine disable caching and closed-form constraints.
func (c Config) EffectiveRuntime() RuntimeConfig {
	rt := c.Runtime

	if c.NLLBackend != BackendCombine {
		rt.DirectMode = true
		rt.OptimizeConstraints = false
	}

	return rt
}

// SlogLevel returns the configured log level.
func (c Config) SlogLevel() slog.Level {
	var l slog.Level

	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}

	return l
}

// ParseProfilingMode parses a profiling mode name.
func ParseProfilingMode(s string) (ProfilingMode, error) {
	switch m := ProfilingMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ProfileAll, ProfileUnconstrained, ProfilePOI, ProfileNone:
		return m, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrInvalidProfilingMode)
	}
}

// ParseNLLBackend parses a backend name.
func ParseNLLBackend(s string) (NLLBackend, error) {
	switch b := NLLBackend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendCombine, BackendLegacy, BackendCPU, BackendCodegen:
		return b, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrInvalidNLLBackend)
	}
}

// ParseCrossingAlgorithm parses a crossing algorithm name.
func ParseCrossingAlgorithm(s string) (CrossingAlgorithm, error) {
	switch a := CrossingAlgorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case CrossingLegacy, CrossingNew:
		return a, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrInvalidCrossingAlgorithm)
	}
}

//////
// Helper functions.
//////

func applyEnv(c *CrossingConfig) {
	if v, ok := envBool(EnvNewCrossingAlgo); ok {
		if v {
			c.Algorithm = CrossingNew
		} else {
			c.Algorithm = CrossingLegacy
		}
	}

	if v, ok := envBool(EnvDynamicStep); ok {
		c.DynamicStep = v
	}

	if v, ok := envBool(EnvBound); ok {
		c.Bounded = v
	}

	if v, ok := envBool(EnvNeverGiveUp); ok {
		c.NeverGiveUp = v
	}
}

// envBool reads a numeric or boolean environment variable.
func envBool(key string) (bool, bool) {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return false, false
	}

	if b, err := strconv.ParseBool(s); err == nil {
		return b, true
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0, true
	}

	return false, false
}
