package cnll

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "fit.yaml", `
crossing:
  algorithm: new
  tolerance: 0.001
  stepSize: 0.2
  neverGiveUp: true
runtime:
  noDeepLEE: true
  cacheSize: 2
fit:
  profiling: poi
  do95: true
  ndim: 2
nllBackend: cpu
logLevel: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	want := DefaultConfig()
	want.Crossing.Algorithm = CrossingNew
	want.Crossing.Tolerance = 0.001
	want.Crossing.StepSize = 0.2
	want.Crossing.NeverGiveUp = true
	want.Runtime.NoDeepLEE = true
	want.Runtime.CacheSize = 2
	want.Fit.Profiling = ProfilePOI
	want.Fit.Do95 = true
	want.Fit.NDim = 2
	want.NLLBackend = BackendCPU
	want.LogLevel = "debug"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())

	rt := cfg.EffectiveRuntime()
	assert.True(t, rt.DirectMode)
	assert.False(t, rt.OptimizeConstraints)
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfig(t, "fit.json", `{"crossing": {"maxFailedSteps": 9}, "fit": {"robust": false}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Crossing.MaxFailedSteps)
	assert.False(t, cfg.Fit.Robust)
	assert.Equal(t, CrossingLegacy, cfg.Crossing.Algorithm)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown algorithm", content: "crossing:\n  algorithm: fastest\n"},
		{name: "negative tolerance", content: "crossing:\n  tolerance: -1\n"},
		{name: "cache too large", content: "runtime:\n  cacheSize: 4\n"},
		{name: "unknown profiling", content: "fit:\n  profiling: some\n"},
		{name: "unknown backend", content: "nllBackend: gpu\n"},
		{name: "unknown minimizer", content: "crossing:\n  minimizerAlgorithm: simplex\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, "bad.yaml", tt.content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := LoadConfig(writeConfig(t, "garbage.yaml", "crossing: [1, 2\n"))
	assert.Error(t, err)
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv(EnvNewCrossingAlgo, "1")
	t.Setenv(EnvDynamicStep, "true")
	t.Setenv(EnvBound, "0")
	t.Setenv(EnvNeverGiveUp, "maybe")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, CrossingNew, cfg.Crossing.Algorithm)
	assert.True(t, cfg.Crossing.DynamicStep)
	assert.False(t, cfg.Crossing.Bounded)
	assert.False(t, cfg.Crossing.NeverGiveUp)
}

func TestParseNames(t *testing.T) {
	m, err := ParseProfilingMode(" Unconstrained ")
	require.NoError(t, err)
	assert.Equal(t, ProfileUnconstrained, m)

	_, err = ParseProfilingMode("most")
	assert.ErrorIs(t, err, ErrInvalidProfilingMode)

	b, err := ParseNLLBackend("CODEGEN")
	require.NoError(t, err)
	assert.Equal(t, BackendCodegen, b)

	_, err = ParseNLLBackend("gpu")
	assert.ErrorIs(t, err, ErrInvalidNLLBackend)

	a, err := ParseCrossingAlgorithm("new")
	require.NoError(t, err)
	assert.Equal(t, CrossingNew, a)

	_, err = ParseCrossingAlgorithm("newest")
	assert.ErrorIs(t, err, ErrInvalidCrossingAlgorithm)
}

func TestSlogLevelFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "loud"

	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}
