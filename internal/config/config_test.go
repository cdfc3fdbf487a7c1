package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load("testdata/discover.yaml")
	require.NoError(t, err)

	assert.Equal(t, "target", cfg.Target)
	assert.Equal(t, 3, cfg.MaxIters)
	assert.Equal(t, 0.001, cfg.ResidualTolerance)
	assert.True(t, cfg.Intercept)
	assert.Equal(t, []string{"inputs", "u", "v"}, cfg.Search.BaseFeatures)
	assert.Equal(t, []string{"ddx", "ddy", "laplacian", "advected"}, cfg.Search.SpatialFunctions)
	assert.Equal(t, 200, cfg.Search.PopulationSize)
	assert.Equal(t, [2]int{1, 3}, cfg.Search.InitDepth)
	require.NotNil(t, cfg.Search.ConstRange)
	assert.Equal(t, [2]float64{-1, 1}, *cfg.Search.ConstRange)
	assert.Equal(t, uint64(7), cfg.Search.Seed)

	// Defaults filled in by the schema.
	assert.Equal(t, []string{"add", "sub", "mul"}, cfg.Search.BaseFunctions)
	assert.Equal(t, 20, cfg.Search.TournamentSize)
	assert.Equal(t, 0.9, cfg.Search.PCrossover)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 1e12, cfg.ConditionLimit)
}

func TestLoad_CUE(t *testing.T) {
	cfg, err := Load("testdata/discover.cue")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.MaxIters)
	assert.Equal(t, 1e-6, cfg.ResidualTolerance)
	assert.Equal(t, []string{"add", "mul"}, cfg.Search.BaseFunctions)
	assert.Equal(t, 0.99, cfg.Search.StoppingCorrelation)
	assert.Equal(t, 2, cfg.Search.Workers)
	assert.Equal(t, 1000, cfg.Search.PopulationSize)
	assert.Nil(t, cfg.Search.ConstRange)
	assert.False(t, cfg.Intercept)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		format Format
	}{
		{"missing tolerance", "search:\n  base_features: [inputs]\n", FormatYAML},
		{"missing features", "residual_tolerance: 0.1\n", FormatYAML},
		{"empty features", "residual_tolerance: 0.1\nsearch:\n  base_features: []\n", FormatYAML},
		{"non-positive tolerance", "residual_tolerance: 0\nsearch:\n  base_features: [q]\n", FormatYAML},
		{"unknown top-level key", "residual_tolerance: 0.1\nbogus: 1\nsearch:\n  base_features: [q]\n", FormatYAML},
		{"unknown search key", "residual_tolerance: 0.1\nsearch:\n  base_features: [q]\n  mutation_rate: 0.2\n", FormatYAML},
		{"unknown operator", "residual_tolerance: 0.1\nsearch:\n  base_features: [q]\n  base_functions: [add, tanh]\n", FormatYAML},
		{"spatial op as arithmetic", "residual_tolerance: 0.1\nsearch:\n  base_features: [q]\n  base_functions: [ddx]\n", FormatYAML},
		{"probability out of range", "residual_tolerance: 0.1\nsearch:\n  base_features: [q]\n  p_crossover: 1.5\n", FormatYAML},
		{"population too small", "residual_tolerance: 0.1\nsearch:\n  base_features: [q]\n  population_size: 1\n", FormatYAML},
		{"malformed yaml", "residual_tolerance: [\n", FormatYAML},
		{"malformed cue", "residual_tolerance: {", FormatCUE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), tt.format)
			require.Error(t, err)
			assert.True(t, IsInvalid(err), "want config error, got %v", err)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("testdata/discover.toml")
	require.Error(t, err)
	assert.True(t, IsInvalid(err))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_iters: 2\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestHybrid_Conversion(t *testing.T) {
	cfg, err := Load("testdata/discover.yaml")
	require.NoError(t, err)

	h := cfg.Hybrid()
	assert.Equal(t, "target", h.Target)
	assert.Equal(t, 3, h.MaxIters)
	assert.Equal(t, 0.001, h.ResidualTolerance)
	assert.True(t, h.Intercept)
	assert.Equal(t, 3, h.MaxRetries)
	assert.Equal(t, 200, h.Search.PopulationSize)
	assert.Equal(t, uint64(7), h.Search.Seed)
	assert.NoError(t, h.Validate())

	cfg.MaxRetries = 0
	assert.Equal(t, -1, cfg.Hybrid().MaxRetries, "explicit zero disables retries")
}

func TestSchema_Embedded(t *testing.T) {
	assert.Contains(t, Schema(), "#Config")
	assert.Contains(t, Schema(), "residual_tolerance: number & >0")
}
