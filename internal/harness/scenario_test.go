package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Discovery(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/linear_discovery.yaml")
	require.NoError(t, err)

	assert.Equal(t, "linear_discovery", s.Name)
	assert.True(t, s.IsDiscovery())
	require.NotNil(t, s.Dataset.Synthetic)
	assert.Equal(t, 16, s.Dataset.Synthetic.NX)
	assert.Equal(t, "mul(inputs, 3)", s.Dataset.Derived["target"])
	assert.Len(t, s.Assertions, 5)

	cfg, err := s.RunConfig()
	require.NoError(t, err)
	assert.Equal(t, 1e-6, cfg.ResidualTolerance)
	assert.Equal(t, []string{"inputs"}, cfg.Search.BaseFeatures)
	assert.Empty(t, cfg.Search.SpatialFunctions)
	assert.Equal(t, [2]int{0, 2}, cfg.Search.InitDepth)
	assert.Equal(t, uint64(3), cfg.Search.Seed)
}

func TestLoadScenario_Fit(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/exact_fit.yaml")
	require.NoError(t, err)

	assert.False(t, s.IsDiscovery())
	assert.Equal(t, "target", s.Target)
	assert.Equal(t, []string{"inputs", "laplacian(inputs)"}, s.Terms)
	assert.Equal(t, "scenario-exact_fit", s.runID())
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_RelativeDatasetFile(t *testing.T) {
	dir := t.TempDir()
	content := `
name: from_file
description: "dataset path resolves against the scenario"
dataset:
  file: data/missing.json
target: q
terms: [q]
assertions:
  - type: stop_reason
    stop: fit
`
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset file")
}

func TestParseScenario_Invalid(t *testing.T) {
	const dataset = "dataset:\n  synthetic: { nx: 8, ny: 8, batch: 1, seed: 1 }\n"
	const fit = "target: q\nterms: [q]\n"
	const stop = "assertions:\n  - type: stop_reason\n    stop: fit\n"

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing name", "description: d\n" + dataset + fit + stop, "name is required"},
		{"missing description", "name: n\n" + dataset + fit + stop, "description is required"},
		{"missing dataset", "name: n\ndescription: d\n" + fit + stop, "file or synthetic"},
		{"both datasets", "name: n\ndescription: d\ndataset:\n  file: x.json\n  synthetic: { nx: 8, ny: 8, batch: 1 }\n" + fit + stop, "mutually exclusive"},
		{"bad derived", "name: n\ndescription: d\ndataset:\n  synthetic: { nx: 8, ny: 8, batch: 1 }\n  derived: { t: \"add(a\" }\n" + fit + stop, "dataset.derived[t]"},
		{"no config or terms", "name: n\ndescription: d\n" + dataset + stop, "either config or target and terms"},
		{"config and terms", "name: n\ndescription: d\n" + dataset + fit + "config:\n  residual_tolerance: 0.1\n" + stop, "mutually exclusive"},
		{"bad term", "name: n\ndescription: d\n" + dataset + "target: q\nterms: [\"sin(q)\"]\n" + stop, "terms[0]"},
		{"no assertions", "name: n\ndescription: d\n" + dataset + fit, "assertions list is required"},
		{"unknown field", "name: n\ndescription: d\nassertion: []\n" + dataset + fit + stop, "failed to parse YAML"},
		{"unknown assertion", "name: n\ndescription: d\n" + dataset + fit + "assertions:\n  - type: trace_order\n", "unknown assertion type"},
		{"stop without reason", "name: n\ndescription: d\n" + dataset + fit + "assertions:\n  - type: stop_reason\n", "stop is required"},
		{"count without bound", "name: n\ndescription: d\n" + dataset + fit + "assertions:\n  - type: iteration_count\n", "count or max"},
		{"coefficient without expression", "name: n\ndescription: d\n" + dataset + fit + "assertions:\n  - type: coefficient\n    value: 1\n", "expression is required"},
		{"unknown operator", "name: n\ndescription: d\n" + dataset + fit + "assertions:\n  - type: operator_used\n    operator: curl\n", "unknown operator"},
		{"final_state without expect", "name: n\ndescription: d\n" + dataset + fit + "assertions:\n  - type: final_state\n    table: runs\n", "expect is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
