package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fitScenario = `name: %s
description: "fit of a known combination"
dataset:
  synthetic: { nx: 8, ny: 8, batch: 1, seed: 4 }
  derived:
    target: "mul(inputs, 2)"
target: target
terms: [inputs]
assertions:
  - type: stop_reason
    stop: fit
  - type: coefficient
    expression: inputs
    value: %s
    tolerance: 1e-6
`

func writeScenario(t *testing.T, dir, name, coefficient string) {
	t.Helper()
	content := []byte(fmt.Sprintf(fitScenario, name, coefficient))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), content, 0644))
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, NewTestCommand, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := execute(t, NewTestCommand, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandPassAndFail(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0755))
	writeScenario(t, scenarios, "double", "2")
	writeScenario(t, scenarios, "wrong", "5")

	out, err := execute(t, NewTestCommand, "json", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	assert.Equal(t, "error", decodeData(t, out, &result))
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	for _, s := range result.Scenarios {
		if s.Name == "wrong" {
			assert.False(t, s.Pass)
			require.NotEmpty(t, s.Errors)
			assert.Contains(t, s.Errors[0], "inputs coefficient 5")
		} else {
			assert.True(t, s.Pass, s.Errors)
		}
	}
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(scenarios, 0755))
	writeScenario(t, scenarios, "double", "2")

	out, err := execute(t, NewTestCommand, "text", scenarios, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ double (golden updated)")

	goldenPath := filepath.Join(root, "golden", "double.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"coefficients": [
        "2.000000"
      ]`)

	out, err = execute(t, NewTestCommand, "text", scenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All scenarios passed")

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0644))
	out, err = execute(t, NewTestCommand, "text", scenarios)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	out, err := execute(t, NewTestCommand, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "exact-fit.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "exact-intercept.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "discovery.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "exact-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = findScenarioFiles(tmpDir, "[")
	assert.Error(t, err)
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "sub.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
