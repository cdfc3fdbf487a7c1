package expr

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes expression errors.
type ErrorCode string

const (
	// ErrCodeSyntax indicates malformed expression text.
	ErrCodeSyntax ErrorCode = "SYNTAX_ERROR"

	// ErrCodeUnsupportedOperator indicates a function name outside the vocabulary.
	ErrCodeUnsupportedOperator ErrorCode = "UNSUPPORTED_OPERATOR"
)

// SyntaxError reports malformed expression text.
type SyntaxError struct {
	Input   string
	Pos     int // byte offset into Input
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s at offset %d in %q", ErrCodeSyntax, e.Message, e.Pos, e.Input)
}

// UnsupportedOperatorError reports a function name that is not part of the
// operator vocabulary, or not part of a configured subset of it.
type UnsupportedOperatorError struct {
	Name string
	Pos  int // byte offset when raised by Parse, -1 otherwise
}

func (e *UnsupportedOperatorError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("%s: unknown function %q at offset %d", ErrCodeUnsupportedOperator, e.Name, e.Pos)
	}
	return fmt.Sprintf("%s: unknown function %q", ErrCodeUnsupportedOperator, e.Name)
}

// IsSyntax reports whether err is (or wraps) a SyntaxError.
func IsSyntax(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsUnsupportedOperator reports whether err is (or wraps) an UnsupportedOperatorError.
func IsUnsupportedOperator(err error) bool {
	var ue *UnsupportedOperatorError
	return errors.As(err, &ue)
}
