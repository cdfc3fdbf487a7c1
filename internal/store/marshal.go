package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// marshalConfig converts a run configuration to JSON TEXT. HTML escaping is
// disabled so expressions such as "a<b" are stored verbatim.
func marshalConfig(cfg any) (string, error) {
	if cfg == nil {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cfg); err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// nullable maps non-finite values to NULL; SQLite has no NaN.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
