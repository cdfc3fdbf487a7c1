package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// execute runs a subcommand built by newCmd and returns its stdout.
func execute(t *testing.T, newCmd func(*RootOptions) *cobra.Command, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := newCmd(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decodeData unmarshals the data payload of a JSON CLIResponse.
func decodeData(t *testing.T, out string, v any) string {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v), out)
	}
	return resp.Status
}

// writeSynth generates a small dataset whose target is 3·inputs.
func writeSynth(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ds.json")
	_, err := execute(t, NewSynthCommand, "text",
		"--out", path, "--nx", "16", "--ny", "16", "--batch", "2", "--seed", "5",
		"--target-expr", "mul(inputs, 3)")
	require.NoError(t, err)
	return path
}

const linearConfig = `target: target
max_iters: 3
residual_tolerance: 1e-6
search:
  base_features: [inputs]
  base_functions: [add, mul]
  spatial_functions: []
  population_size: 60
  generations: 3
  tournament_size: 5
  init_depth: [0, 2]
  max_depth: 4
  stopping_correlation: 0.9999
  workers: 2
  seed: 3
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
