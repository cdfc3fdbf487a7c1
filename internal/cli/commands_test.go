package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hybridsr/internal/hybrid"
	"github.com/roach88/hybridsr/internal/store"
	"github.com/roach88/hybridsr/internal/testutil"
)

func TestSynth_WritesDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ds.json")
	out, err := execute(t, NewSynthCommand, "json",
		"--out", path, "--nx", "8", "--ny", "4", "--batch", "3", "--lev", "2",
		"--target-expr", "laplacian(inputs)", "--target-name", "q")
	require.NoError(t, err)

	var info DatasetInfo
	assert.Equal(t, "ok", decodeData(t, out, &info))
	assert.Equal(t, []int{3, 2, 4, 8}, info.Shape)
	assert.Equal(t, []string{"inputs", "q", "u", "v"}, info.Fields)
	assert.FileExists(t, path)
}

func TestSynth_BadTargetExpression(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ds.json")
	out, err := execute(t, NewSynthCommand, "text", "--out", path, "--target-expr", "mul(missing, 2)")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E103]")
	assert.NoFileExists(t, path)
}

func TestEval_Stats(t *testing.T) {
	ds := writeSynth(t)

	out, err := execute(t, NewEvalCommand, "json", ds, "mul(inputs, 3)", "--corr-with", "target")
	require.NoError(t, err)

	var stats FieldStats
	decodeData(t, out, &stats)
	assert.Equal(t, "mul(inputs, 3)", stats.Expression)
	assert.Equal(t, []int{2, 16, 16}, stats.Shape)
	assert.LessOrEqual(t, stats.Min, stats.Mean)
	assert.GreaterOrEqual(t, stats.Max, stats.Mean)
	assert.Greater(t, stats.Std, 0.0)
	require.NotNil(t, stats.Correlation)
	assert.InDelta(t, 1.0, *stats.Correlation, 1e-12)
}

func TestEval_NonFiniteValuesCounted(t *testing.T) {
	ds := writeSynth(t)

	out, err := execute(t, NewEvalCommand, "json", ds, "div(inputs, 0)")
	require.NoError(t, err)

	var stats FieldStats
	decodeData(t, out, &stats)
	assert.Equal(t, 2*16*16, stats.NonFinite)
}

func TestEval_Errors(t *testing.T) {
	ds := writeSynth(t)

	tests := []struct {
		name     string
		args     []string
		wantCode string
		wantExit int
	}{
		{"syntax", []string{ds, "add(inputs"}, "E101", ExitFailure},
		{"operator", []string{ds, "sin(inputs)"}, "E102", ExitFailure},
		{"field", []string{ds, "nope"}, "E103", ExitFailure},
		{"missing dataset", []string{filepath.Join(t.TempDir(), "none.json"), "inputs"}, "E002", ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewEvalCommand, "text", tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.wantCode+"]")
		})
	}
}

func TestFit_RecoversCoefficient(t *testing.T) {
	ds := writeSynth(t)

	out, err := execute(t, NewFitCommand, "json", ds, "--target", "target", "--term", "inputs")
	require.NoError(t, err)

	var res FitResult
	decodeData(t, out, &res)
	assert.Equal(t, []string{"inputs"}, res.Expressions)
	require.Len(t, res.Coefficients, 1)
	assert.InDelta(t, 3.0, res.Coefficients[0], 1e-9)
	assert.Nil(t, res.Intercept)
	assert.InDelta(t, 1.0, res.R2, 1e-9)
}

func TestFit_Singular(t *testing.T) {
	ds := writeSynth(t)

	out, err := execute(t, NewFitCommand, "text", ds, "--term", "inputs", "--term", "mul(inputs, 2)")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E201]")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, NewValidateCommand, "json", writeFile(t, dir, "run.yaml", linearConfig))
	require.NoError(t, err)
	var res ValidationResult
	assert.Equal(t, "ok", decodeData(t, out, &res))
	assert.True(t, res.Valid)
	require.NotNil(t, res.Config)
	assert.Equal(t, 3, res.Config.MaxRetries)

	out, err = execute(t, NewValidateCommand, "text", writeFile(t, dir, "bad.yaml", "target: t\n"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E301]")

	_, err = execute(t, NewValidateCommand, "text", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDiscover_RecordsRun(t *testing.T) {
	ds := writeSynth(t)
	dir := t.TempDir()
	cfg := writeFile(t, dir, "run.yaml", linearConfig)
	db := filepath.Join(dir, "runs.db")

	out, err := execute(t, NewDiscoverCommand, "json", ds, "--config", cfg, "--db", db, "--run-id", "linear")
	require.NoError(t, err)

	var summary hybrid.Summary
	decodeData(t, out, &summary)
	assert.Equal(t, "linear", summary.RunID)
	assert.Equal(t, hybrid.StopTolerance, summary.Stop)
	require.Len(t, summary.Iterations, 1)
	assert.Equal(t, []string{"inputs"}, summary.Iterations[0].Expressions)
	assert.InDelta(t, 3.0, summary.Iterations[0].Coefficients[0], 1e-9)

	// history: list
	out, err = execute(t, NewHistoryCommand, "json", "--db", db)
	require.NoError(t, err)
	var runs []store.Run
	decodeData(t, out, &runs)
	require.Len(t, runs, 1)
	assert.Equal(t, "linear", runs[0].ID)
	assert.Equal(t, hybrid.StopTolerance, runs[0].Stop)
	assert.Equal(t, 1, runs[0].Iterations)

	// history: one run
	out, err = execute(t, NewHistoryCommand, "json", "--db", db, "--run", "linear")
	require.NoError(t, err)
	var rh RunHistory
	decodeData(t, out, &rh)
	require.Len(t, rh.Iterations, 1)
	assert.Equal(t, "inputs", rh.Iterations[0].Candidate)

	// history: by term
	out, err = execute(t, NewHistoryCommand, "json", "--db", db, "--expr", " inputs ")
	require.NoError(t, err)
	var th TermHistory
	decodeData(t, out, &th)
	assert.Equal(t, "inputs", th.Expression)
	require.Len(t, th.Occurrences, 1)
	assert.Equal(t, "linear", th.Occurrences[0].RunID)

	// plot
	png := filepath.Join(dir, "convergence.png")
	_, err = execute(t, NewPlotCommand, "text", "--db", db, "--run", "linear", "--out", png)
	require.NoError(t, err)
	data, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestDiscover_DatasetFromConfig(t *testing.T) {
	ds := writeSynth(t)
	dir := filepath.Dir(ds)
	cfg := writeFile(t, dir, "run.yaml", "dataset: ds.json\n"+linearConfig)

	out, err := execute(t, NewDiscoverCommand, "text", "--config", cfg, "--run-id", "from-config")
	require.NoError(t, err)
	assert.Contains(t, out, "Run from-config (target target): stopped on tolerance")
	assert.Contains(t, out, "inputs")
}

func TestDiscover_GeneratedRunID(t *testing.T) {
	ds := writeSynth(t)
	cfg := writeFile(t, t.TempDir(), "run.yaml", linearConfig)

	out, err := execute(t, NewDiscoverCommand, "json", ds, "--config", cfg)
	require.NoError(t, err)

	var summary hybrid.Summary
	decodeData(t, out, &summary)
	assert.Len(t, summary.RunID, 36)
}

func TestDiscover_InjectedRunIDs(t *testing.T) {
	ds := writeSynth(t)
	cfg := writeFile(t, t.TempDir(), "run.yaml", linearConfig)
	ids := testutil.NewConstantRunID("constant")

	for range 2 {
		buf := &bytes.Buffer{}
		cmd := newDiscoverCommand(&RootOptions{Format: "json"}, ids)
		cmd.SetOut(buf)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{ds, "--config", cfg})
		require.NoError(t, cmd.Execute())

		var summary hybrid.Summary
		decodeData(t, buf.String(), &summary)
		assert.Equal(t, "constant", summary.RunID)
	}
}

func TestDiscover_Errors(t *testing.T) {
	ds := writeSynth(t)
	dir := t.TempDir()

	t.Run("no dataset", func(t *testing.T) {
		cfg := writeFile(t, dir, "nods.yaml", linearConfig)
		_, err := execute(t, NewDiscoverCommand, "text", "--config", cfg)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := writeFile(t, dir, "bad.yaml", "target: target\n")
		out, err := execute(t, NewDiscoverCommand, "text", ds, "--config", cfg)
		require.Error(t, err)
		assert.Contains(t, out, "Error [E301]")
	})

	t.Run("unknown target", func(t *testing.T) {
		cfg := writeFile(t, dir, "target.yaml", "target: nope\n"+linearConfig[len("target: target\n"):])
		out, err := execute(t, NewDiscoverCommand, "text", ds, "--config", cfg)
		require.Error(t, err)
		assert.Contains(t, out, "Error [E103]")
	})
}

func TestHistory_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, NewHistoryCommand, "text", "--db", filepath.Join(dir, "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.NoFileExists(t, filepath.Join(dir, "none.db"))

	db := filepath.Join(dir, "empty.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, NewHistoryCommand, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")

	out, err = execute(t, NewHistoryCommand, "text", "--db", db, "--run", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "run not found: ghost")

	_, err = execute(t, NewHistoryCommand, "text", "--db", db, "--run", "a", "--expr", "inputs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestPlot_RejectsExtension(t *testing.T) {
	out, err := execute(t, NewPlotCommand, "text", "--db", "x.db", "--run", "r", "--out", "chart.jpg")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}
