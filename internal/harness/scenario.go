package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hybridsr/internal/config"
	"github.com/roach88/hybridsr/internal/expr"
)

// Scenario defines an end-to-end discovery or fit scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Dataset DatasetSpec `yaml:"dataset"`

	// Config is an inline run configuration for discovery scenarios, in
	// the same form as a run configuration file.
	Config yaml.Node `yaml:"config,omitempty"`

	// Target, Terms and Intercept describe a fit scenario.
	Target    string   `yaml:"target,omitempty"`
	Terms     []string `yaml:"terms,omitempty"`
	Intercept bool     `yaml:"intercept,omitempty"`

	// RunID fixes the run id. Defaults to "scenario-" + Name.
	RunID string `yaml:"run_id,omitempty"`

	Assertions []Assertion `yaml:"assertions"`

	// dir resolves relative dataset paths.
	dir string
}

// DatasetSpec describes the scenario dataset: a file or a synthetic
// generator, plus derived fields.
type DatasetSpec struct {
	// File is a dataset JSON file, relative to the scenario file.
	File      string         `yaml:"file,omitempty"`
	Synthetic *SyntheticSpec `yaml:"synthetic,omitempty"`

	// Derived maps new field names to expressions over the dataset.
	Derived map[string]string `yaml:"derived,omitempty"`
}

// SyntheticSpec mirrors grid.SyntheticOptions.
type SyntheticSpec struct {
	NX      int     `yaml:"nx"`
	NY      int     `yaml:"ny"`
	LX      float64 `yaml:"lx,omitempty"`
	LY      float64 `yaml:"ly,omitempty"`
	Batch   int     `yaml:"batch"`
	Levels  int     `yaml:"levels,omitempty"`
	MaxMode int     `yaml:"max_mode,omitempty"`
	Seed    uint64  `yaml:"seed"`
}

// Assertion validates the recorded iterations or the store tables.
type Assertion struct {
	// Type specifies the assertion type; see the Assert constants.
	Type string `yaml:"type"`

	// Stop is the expected stop reason (stop_reason).
	Stop string `yaml:"stop,omitempty"`

	// Count and Max bound the number of iterations (iteration_count).
	Count int `yaml:"count,omitempty"`
	Max   int `yaml:"max,omitempty"`

	// Iteration selects an iteration, 1-based; zero means the last one
	// (min_correlation, max_residual_norm).
	Iteration int `yaml:"iteration,omitempty"`

	// Value is the threshold or expected coefficient.
	Value float64 `yaml:"value,omitempty"`

	// Tolerance is the relative tolerance for coefficient.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Expression and Expressions name terms (term_present, coefficient,
	// term_order).
	Expression  string   `yaml:"expression,omitempty"`
	Expressions []string `yaml:"expressions,omitempty"`

	// Operator names an operator (operator_used).
	Operator string `yaml:"operator,omitempty"`

	// Table, Where and Expect drive final_state. Where must match exactly
	// one row; Expect is a subset match.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertStopReason      = "stop_reason"
	AssertIterationCount  = "iteration_count"
	AssertMinCorrelation  = "min_correlation"
	AssertMaxResidualNorm = "max_residual_norm"
	AssertTermPresent     = "term_present"
	AssertTermOrder       = "term_order"
	AssertOperatorUsed    = "operator_used"
	AssertCoefficient     = "coefficient"
	AssertFinalState      = "final_state"
)

// IsDiscovery reports whether the scenario runs a hybrid discovery rather
// than a fixed fit.
func (s *Scenario) IsDiscovery() bool { return !s.Config.IsZero() }

// RunConfig parses the inline run configuration.
func (s *Scenario) RunConfig() (*config.Config, error) {
	data, err := yaml.Marshal(&s.Config)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return config.Parse(data, config.FormatYAML)
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	s.dir = filepath.Dir(path)
	if s.Dataset.File != "" {
		if _, err := os.Stat(s.datasetPath()); err != nil {
			return nil, fmt.Errorf("invalid scenario: dataset file: %w", err)
		}
	}
	return s, nil
}

// ParseScenario parses scenario YAML. Relative paths resolve against the
// working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func (s *Scenario) datasetPath() string {
	if filepath.IsAbs(s.Dataset.File) || s.dir == "" {
		return s.Dataset.File
	}
	return filepath.Join(s.dir, s.Dataset.File)
}

func (s *Scenario) runID() string {
	if s.RunID != "" {
		return s.RunID
	}
	return "scenario-" + s.Name
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch d := s.Dataset; {
	case d.File == "" && d.Synthetic == nil:
		return fmt.Errorf("dataset: file or synthetic is required")
	case d.File != "" && d.Synthetic != nil:
		return fmt.Errorf("dataset: file and synthetic are mutually exclusive")
	}
	for name, text := range s.Dataset.Derived {
		if _, err := expr.Parse(text); err != nil {
			return fmt.Errorf("dataset.derived[%s]: %w", name, err)
		}
	}

	if s.IsDiscovery() {
		if len(s.Terms) > 0 || s.Target != "" {
			return fmt.Errorf("config and target/terms are mutually exclusive")
		}
	} else {
		if s.Target == "" || len(s.Terms) == 0 {
			return fmt.Errorf("either config or target and terms are required")
		}
		for i, text := range s.Terms {
			if _, err := expr.Parse(text); err != nil {
				return fmt.Errorf("terms[%d]: %w", i, err)
			}
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStopReason:
		if a.Stop == "" {
			return fmt.Errorf("assertions[%d]: stop is required for stop_reason", index)
		}
	case AssertIterationCount:
		if a.Count <= 0 && a.Max <= 0 {
			return fmt.Errorf("assertions[%d]: count or max is required for iteration_count", index)
		}
	case AssertMinCorrelation, AssertMaxResidualNorm:
		if a.Iteration < 0 {
			return fmt.Errorf("assertions[%d]: iteration must be non-negative", index)
		}
	case AssertTermPresent, AssertCoefficient:
		if a.Expression == "" {
			return fmt.Errorf("assertions[%d]: expression is required for %s", index, a.Type)
		}
		if _, err := expr.Parse(a.Expression); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertTermOrder:
		if len(a.Expressions) == 0 {
			return fmt.Errorf("assertions[%d]: expressions list is required for term_order", index)
		}
		for _, text := range a.Expressions {
			if _, err := expr.Parse(text); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertOperatorUsed:
		if _, ok := expr.LookupOp(a.Operator); !ok {
			return fmt.Errorf("assertions[%d]: unknown operator %q", index, a.Operator)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
