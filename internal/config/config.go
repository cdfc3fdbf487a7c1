// Package config loads discovery run configuration from YAML or CUE files.
//
// Both formats are unified with an embedded CUE schema (#Config) that
// supplies defaults, range constraints and the operator enumerations, then
// decoded into Config. residual_tolerance has no default.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/hybridsr/internal/hybrid"
	"github.com/roach88/hybridsr/internal/search"
)

//go:embed schema.cue
var schemaSource string

// Schema returns the CUE schema configuration files are checked against.
func Schema() string { return schemaSource }

// Config is a decoded run configuration.
type Config struct {
	Dataset           string  `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Target            string  `json:"target" yaml:"target"`
	MaxIters          int     `json:"max_iters" yaml:"max_iters"`
	ResidualTolerance float64 `json:"residual_tolerance" yaml:"residual_tolerance"`
	MaxRetries        int     `json:"max_retries" yaml:"max_retries"`
	Intercept         bool    `json:"intercept" yaml:"intercept"`
	PerLevel          bool    `json:"per_level" yaml:"per_level"`
	ConditionLimit    float64 `json:"condition_limit" yaml:"condition_limit"`
	Search            Search  `json:"search" yaml:"search"`
}

// Search mirrors search.Config with file field names.
type Search struct {
	BaseFeatures         []string    `json:"base_features" yaml:"base_features"`
	BaseFunctions        []string    `json:"base_functions" yaml:"base_functions"`
	SpatialFunctions     []string    `json:"spatial_functions" yaml:"spatial_functions"`
	ParsimonyCoefficient float64     `json:"parsimony_coefficient" yaml:"parsimony_coefficient"`
	PopulationSize       int         `json:"population_size" yaml:"population_size"`
	Generations          int         `json:"generations" yaml:"generations"`
	TournamentSize       int         `json:"tournament_size" yaml:"tournament_size"`
	InitDepth            [2]int      `json:"init_depth" yaml:"init_depth"`
	MaxDepth             int         `json:"max_depth" yaml:"max_depth"`
	PCrossover           float64     `json:"p_crossover" yaml:"p_crossover"`
	PSubtreeMutation     float64     `json:"p_subtree_mutation" yaml:"p_subtree_mutation"`
	PHoistMutation       float64     `json:"p_hoist_mutation" yaml:"p_hoist_mutation"`
	PPointMutation       float64     `json:"p_point_mutation" yaml:"p_point_mutation"`
	PPointReplace        float64     `json:"p_point_replace" yaml:"p_point_replace"`
	ConstRange           *[2]float64 `json:"const_range,omitempty" yaml:"const_range,omitempty"`
	StoppingCorrelation  float64     `json:"stopping_correlation" yaml:"stopping_correlation"`
	Patience             int         `json:"patience" yaml:"patience"`
	Workers              int         `json:"workers" yaml:"workers"`
	CacheSize            int         `json:"cache_size" yaml:"cache_size"`
	Seed                 uint64      `json:"seed" yaml:"seed"`
}

// ErrCodeInvalidConfig indicates a configuration that fails the schema.
const ErrCodeInvalidConfig = "INVALID_CONFIG"

// Error reports a configuration file that cannot be loaded.
type Error struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", ErrCodeInvalidConfig, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", ErrCodeInvalidConfig, e.Message)
}

// IsInvalid reports whether err is (or wraps) a configuration Error.
func IsInvalid(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Format names a configuration syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	}
	return "", &Error{Path: path, Message: "unsupported extension (want .yaml, .yml or .cue)"}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, format)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) && ce.Path == "" {
			ce.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse validates data against the schema and decodes it.
func Parse(data []byte, format Format) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile embedded schema: %w", err)
	}

	var doc cue.Value
	switch format {
	case FormatYAML:
		// Strict decode first for line-numbered unknown-key errors; the map
		// keeps absent keys absent so the schema can fill defaults.
		var strict Config
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&strict); err != nil && !errors.Is(err, io.EOF) {
			return nil, &Error{Message: fmt.Sprintf("parse yaml: %v", err)}
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &Error{Message: fmt.Sprintf("parse yaml: %v", err)}
		}
		if raw == nil {
			raw = map[string]any{}
		}
		doc = ctx.Encode(raw)
	case FormatCUE:
		doc = ctx.CompileBytes(data, cue.Filename("config.cue"))
	default:
		return nil, &Error{Message: fmt.Sprintf("unknown format %q", format)}
	}
	if err := doc.Err(); err != nil {
		return nil, &Error{Message: err.Error()}
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, &Error{Message: err.Error()}
	}
	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, &Error{Message: fmt.Sprintf("decode: %v", err)}
	}
	return &cfg, nil
}

// SearchConfig converts the search section.
func (c *Config) SearchConfig() search.Config {
	s := c.Search
	return search.Config{
		BaseFeatures:         s.BaseFeatures,
		BaseFunctions:        s.BaseFunctions,
		SpatialFunctions:     s.SpatialFunctions,
		ParsimonyCoefficient: s.ParsimonyCoefficient,
		PopulationSize:       s.PopulationSize,
		Generations:          s.Generations,
		Seed:                 s.Seed,
		TournamentSize:       s.TournamentSize,
		InitDepth:            s.InitDepth,
		MaxDepth:             s.MaxDepth,
		PCrossover:           s.PCrossover,
		PSubtreeMutation:     s.PSubtreeMutation,
		PHoistMutation:       s.PHoistMutation,
		PPointMutation:       s.PPointMutation,
		PPointReplace:        s.PPointReplace,
		ConstRange:           s.ConstRange,
		StoppingCorrelation:  s.StoppingCorrelation,
		Patience:             s.Patience,
		Workers:              s.Workers,
		CacheSize:            s.CacheSize,
	}
}

// Hybrid converts the configuration for hybrid.Run.
func (c *Config) Hybrid() hybrid.Config {
	retries := c.MaxRetries
	if retries == 0 {
		retries = -1
	}
	return hybrid.Config{
		Target:            c.Target,
		MaxIters:          c.MaxIters,
		ResidualTolerance: c.ResidualTolerance,
		Search:            c.SearchConfig(),
		Intercept:         c.Intercept,
		PerLevel:          c.PerLevel,
		ConditionLimit:    c.ConditionLimit,
		MaxRetries:        retries,
	}
}
