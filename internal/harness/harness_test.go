package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ExactFitGolden(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/exact_fit.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, StopFit, result.Stop)
}

func TestRun_LinearDiscovery(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/linear_discovery.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "scenario-linear_discovery", result.RunID)
}

func TestRun_NonlinearDispersion(t *testing.T) {
	if testing.Short() {
		t.Skip("full genetic search")
	}
	s, err := LoadScenario("testdata/scenarios/nonlinear_dispersion.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ReportsFailedAssertions(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/exact_fit.yaml")
	require.NoError(t, err)
	s.Assertions = []Assertion{{Type: AssertStopReason, Stop: "tolerance"}}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Expected: tolerance")
}

func TestRun_DerivedFieldErrors(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/exact_fit.yaml")
	require.NoError(t, err)
	s.Dataset.Derived = map[string]string{"target": "mul(missing, 2)"}

	_, err = Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "derived field target")
}

func TestSnapshot_Formatting(t *testing.T) {
	r := sampleResult()
	r.Iterations[1].Intercept = -0.25

	snap := NewSnapshot("sample", r)
	require.Len(t, snap.Iterations, 2)
	assert.Equal(t, []string{"10000000.000000"}, snap.Iterations[0].Coefficients)
	assert.Empty(t, snap.Iterations[0].Intercept)
	assert.Equal(t, "-0.250000", snap.Iterations[1].Intercept)
	assert.Equal(t, "0.004000", snap.Iterations[1].ResidualNorm)

	data, err := MarshalSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])
	assert.Contains(t, string(data), `"stop": "max_iters"`)
}
