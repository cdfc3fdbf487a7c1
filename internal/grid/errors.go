package grid

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes grid errors.
type ErrorCode string

const (
	// ErrCodeUnknownField indicates a field name that does not resolve.
	ErrCodeUnknownField ErrorCode = "UNKNOWN_FIELD"

	// ErrCodeShapeMismatch indicates operands with incompatible shapes.
	ErrCodeShapeMismatch ErrorCode = "SHAPE_MISMATCH"
)

// UnknownFieldError is returned when a field name is not present in a Dataset.
type UnknownFieldError struct {
	Name      string
	Available []string
}

func (e *UnknownFieldError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("%s: field %q not found", ErrCodeUnknownField, e.Name)
	}
	return fmt.Sprintf("%s: field %q not found (available: %s)",
		ErrCodeUnknownField, e.Name, strings.Join(e.Available, ", "))
}

// ShapeMismatchError is returned when two shapes that must agree do not.
type ShapeMismatchError struct {
	// Context names the operation that required conformant shapes.
	Context string
	Want    []int
	Got     []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: %s: want shape %v, got %v", ErrCodeShapeMismatch, e.Context, e.Want, e.Got)
}

// IsUnknownField reports whether err is (or wraps) an UnknownFieldError.
func IsUnknownField(err error) bool {
	var ue *UnknownFieldError
	return errors.As(err, &ue)
}

// IsShapeMismatch reports whether err is (or wraps) a ShapeMismatchError.
func IsShapeMismatch(err error) bool {
	var se *ShapeMismatchError
	return errors.As(err, &se)
}
