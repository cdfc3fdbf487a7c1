package harness

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden-file form of a result. Numbers are rendered with
// six decimals so snapshots do not depend on the last bits of a solve.
type Snapshot struct {
	Scenario   string              `json:"scenario"`
	RunID      string              `json:"run_id"`
	Stop       string              `json:"stop"`
	Iterations []SnapshotIteration `json:"iterations"`
}

// SnapshotIteration is one iteration of a Snapshot.
type SnapshotIteration struct {
	Iteration    int      `json:"iteration"`
	Candidate    string   `json:"candidate"`
	Expressions  []string `json:"expressions"`
	Coefficients []string `json:"coefficients"`
	Intercept    string   `json:"intercept,omitempty"`
	R2           string   `json:"r2"`
	Correlation  string   `json:"correlation"`
	ResidualNorm string   `json:"residual_norm"`
}

func fixed(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

// NewSnapshot builds the snapshot of a result.
func NewSnapshot(name string, r *Result) Snapshot {
	s := Snapshot{Scenario: name, RunID: r.RunID, Stop: string(r.Stop), Iterations: []SnapshotIteration{}}
	for _, it := range r.Iterations {
		coefs := make([]string, len(it.Coefficients))
		for i, c := range it.Coefficients {
			coefs[i] = fixed(c)
		}
		si := SnapshotIteration{
			Iteration:    it.Iteration,
			Candidate:    it.Candidate,
			Expressions:  it.Expressions,
			Coefficients: coefs,
			R2:           fixed(it.R2),
			Correlation:  fixed(it.Correlation),
			ResidualNorm: fixed(it.ResidualNorm),
		}
		if it.Intercept != 0 {
			si.Intercept = fixed(it.Intercept)
		}
		s.Iterations = append(s.Iterations, si)
	}
	return s
}

// MarshalSnapshot renders a snapshot as indented JSON with a trailing newline.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares a result's snapshot against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(NewSnapshot(name, result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}
