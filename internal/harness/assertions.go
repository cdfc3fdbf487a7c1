package harness

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	// Terms are the final model's terms, for context.
	Terms []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Terms) > 0 {
		fmt.Fprintf(&buf, "\nFinal terms:\n")
		for i, term := range e.Terms {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, term)
		}
	}

	return buf.String()
}

func finalTerms(r *Result) []string {
	last, ok := r.Last()
	if !ok {
		return nil
	}
	return last.Expressions
}

func assertStopReason(r *Result, a Assertion) error {
	if string(r.Stop) == a.Stop {
		return nil
	}
	return &AssertionError{
		Type:     AssertStopReason,
		Expected: a.Stop,
		Actual:   string(r.Stop),
		Terms:    finalTerms(r),
	}
}

func assertIterationCount(r *Result, a Assertion) error {
	n := len(r.Iterations)
	switch {
	case a.Count > 0 && n != a.Count:
		return &AssertionError{
			Type:     AssertIterationCount,
			Expected: fmt.Sprintf("%d iterations", a.Count),
			Actual:   fmt.Sprintf("%d iterations", n),
			Terms:    finalTerms(r),
		}
	case a.Max > 0 && n > a.Max:
		return &AssertionError{
			Type:     AssertIterationCount,
			Expected: fmt.Sprintf("at most %d iterations", a.Max),
			Actual:   fmt.Sprintf("%d iterations", n),
			Terms:    finalTerms(r),
		}
	}
	return nil
}

// assertThreshold checks a per-iteration diagnostic against a bound.
func assertThreshold(r *Result, a Assertion) error {
	index := a.Iteration - 1
	if a.Iteration == 0 {
		index = len(r.Iterations) - 1
	}
	if index < 0 || index >= len(r.Iterations) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("iteration %d to exist", a.Iteration),
			Actual:   fmt.Sprintf("%d iterations", len(r.Iterations)),
		}
	}
	it := r.Iterations[index]

	switch a.Type {
	case AssertMinCorrelation:
		if it.Correlation >= a.Value {
			return nil
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("iteration %d correlation >= %g", it.Iteration, a.Value),
			Actual:   fmt.Sprintf("%g", it.Correlation),
			Terms:    it.Expressions,
		}
	default:
		if it.ResidualNorm <= a.Value {
			return nil
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("iteration %d residual norm <= %g", it.Iteration, a.Value),
			Actual:   fmt.Sprintf("%g", it.ResidualNorm),
			Terms:    it.Expressions,
		}
	}
}

// termIndex returns the position of the canonical form of text in terms,
// or -1.
func termIndex(terms []string, text string) int {
	want := expr.MustParse(text).String()
	for i, t := range terms {
		if t == want {
			return i
		}
	}
	return -1
}

func assertTermPresent(r *Result, a Assertion) error {
	terms := finalTerms(r)
	if termIndex(terms, a.Expression) >= 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertTermPresent,
		Expected: fmt.Sprintf("term %s", a.Expression),
		Actual:   "not found in final model",
		Terms:    terms,
	}
}

// assertTermOrder checks that the expressions appear in the final model in
// the given relative order. Other terms may be interleaved.
func assertTermOrder(r *Result, a Assertion) error {
	terms := finalTerms(r)
	prev := -1
	for _, text := range a.Expressions {
		pos := termIndex(terms, text)
		if pos < 0 {
			return &AssertionError{
				Type:     AssertTermOrder,
				Expected: fmt.Sprintf("all terms present: %v", a.Expressions),
				Actual:   fmt.Sprintf("missing term: %s", text),
				Terms:    terms,
			}
		}
		if pos <= prev {
			return &AssertionError{
				Type:     AssertTermOrder,
				Expected: fmt.Sprintf("terms in order: %v", a.Expressions),
				Actual:   fmt.Sprintf("%s at position %d", text, pos+1),
				Terms:    terms,
			}
		}
		prev = pos
	}
	return nil
}

func assertOperatorUsed(r *Result, a Assertion) error {
	op, _ := expr.LookupOp(a.Operator)
	terms := finalTerms(r)
	for _, t := range terms {
		if expr.Uses(expr.MustParse(t), op) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertOperatorUsed,
		Expected: fmt.Sprintf("a term applying %s", a.Operator),
		Actual:   "no such term",
		Terms:    terms,
	}
}

func assertCoefficient(r *Result, a Assertion) error {
	last, _ := r.Last()
	pos := termIndex(last.Expressions, a.Expression)
	if pos < 0 || pos >= len(last.Coefficients) {
		return &AssertionError{
			Type:     AssertCoefficient,
			Expected: fmt.Sprintf("term %s", a.Expression),
			Actual:   "not found in final model",
			Terms:    last.Expressions,
		}
	}
	got := last.Coefficients[pos]
	if approxEqual(got, a.Value, a.Tolerance) {
		return nil
	}
	return &AssertionError{
		Type:     AssertCoefficient,
		Expected: fmt.Sprintf("%s coefficient %g (rel tol %g)", a.Expression, a.Value, a.Tolerance),
		Actual:   fmt.Sprintf("%g", got),
		Terms:    last.Expressions,
	}
}

// approxEqual compares with a relative tolerance, absolute near zero.
func approxEqual(got, want, tol float64) bool {
	if tol <= 0 {
		tol = 1e-9
	}
	return math.Abs(got-want) <= tol*math.Max(1, math.Abs(want))
}

// assertFinalState checks that exactly one row of a store table matches
// the where clause and that it holds the expected values.
//
// Table and column names are validated against a whitelist pattern; values
// are always bound as parameters.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.Query(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]any)
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	keys := sortedKeys(assertion.Expect)
	for _, key := range keys {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}

		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildWhereClause constructs a parameterized WHERE clause. Keys are sorted
// for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML value to a SQL-compatible value.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, float64, bool:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares YAML-typed expected values with SQLite values.
// Integers and booleans are coerced from int64; floats match to a relative
// 1e-9.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil && actual == nil {
		return true
	}
	if expected == nil || actual == nil {
		return false
	}

	switch exp := expected.(type) {
	case string:
		switch act := actual.(type) {
		case string:
			return exp == act
		case []byte:
			return exp == string(act)
		}
		return false
	case int:
		switch act := actual.(type) {
		case int64:
			return int64(exp) == act
		case float64:
			return float64(exp) == act
		}
		return false
	case float64:
		switch act := actual.(type) {
		case float64:
			return approxEqual(act, exp, 1e-9)
		case int64:
			return approxEqual(float64(act), exp, 1e-9)
		}
		return false
	case bool:
		if act, ok := actual.(int64); ok {
			return exp == (act != 0)
		}
		if act, ok := actual.(bool); ok {
			return exp == act
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertStopReason:
			err = assertStopReason(result, assertion)
		case AssertIterationCount:
			err = assertIterationCount(result, assertion)
		case AssertMinCorrelation, AssertMaxResidualNorm:
			err = assertThreshold(result, assertion)
		case AssertTermPresent:
			err = assertTermPresent(result, assertion)
		case AssertTermOrder:
			err = assertTermOrder(result, assertion)
		case AssertOperatorUsed:
			err = assertOperatorUsed(result, assertion)
		case AssertCoefficient:
			err = assertCoefficient(result, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
