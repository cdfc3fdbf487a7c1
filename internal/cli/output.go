package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/roach88/hybridsr/internal/config"
	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/grid"
	"github.com/roach88/hybridsr/internal/regress"
	"github.com/roach88/hybridsr/internal/search"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Run or validation failure (scenarios failed, singular fit, invalid config)
	ExitCommandError = 2 // Command error (invalid paths, unreadable dataset, database not found)
)

// Error codes reported in CLIError.Code.
const (
	// I/O
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E002" // Path not found
	ErrCodeReadFailed  = "E003" // Dataset or database read failed
	ErrCodeWriteFailed = "E004" // File write error

	// Expressions
	ErrCodeSyntax              = "E101" // Malformed expression text
	ErrCodeUnsupportedOperator = "E102" // Unknown function name
	ErrCodeUnknownField        = "E103" // Field not in dataset
	ErrCodeShapeMismatch       = "E104" // Non-conformant fields

	// Search and fit
	ErrCodeSingular  = "E201" // Singular design matrix
	ErrCodeExhausted = "E202" // Search found no usable candidate
	ErrCodeCancelled = "E203" // Interrupted

	// Configuration
	ErrCodeInvalidConfig = "E301" // Config failed schema validation
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode maps an error from the engine packages to a CLIError code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, os.ErrNotExist):
		return ErrCodeNotFound
	case expr.IsSyntax(err):
		return ErrCodeSyntax
	case expr.IsUnsupportedOperator(err):
		return ErrCodeUnsupportedOperator
	case grid.IsUnknownField(err):
		return ErrCodeUnknownField
	case grid.IsShapeMismatch(err):
		return ErrCodeShapeMismatch
	case regress.IsSingularDesignMatrix(err):
		return ErrCodeSingular
	case search.IsSearchExhausted(err):
		return ErrCodeExhausted
	case errors.Is(err, context.Canceled):
		return ErrCodeCancelled
	case config.IsInvalid(err):
		return ErrCodeInvalidConfig
	}
	return ErrCodeGeneric
}

// exitCodeFor returns ExitCommandError for errors about the command's
// inputs and ExitFailure for everything else.
func exitCodeFor(code string) int {
	switch code {
	case ErrCodeNotFound, ErrCodeReadFailed, ErrCodeWriteFailed:
		return ExitCommandError
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// newFormatter builds the formatter for a command's streams.
func newFormatter(opts *RootOptions, stdout, stderr io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    stdout,
		ErrWriter: stderr, // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E101", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format. Text
// output goes through text, which may be nil to print data with %v.
func (f *OutputFormatter) Success(data any, text func(io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	if text != nil {
		text(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err with its mapped code and returns the matching ExitError.
func (f *OutputFormatter) Fail(message string, err error) error {
	code := ErrorCode(err)
	_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), nil)
	return WrapExitError(exitCodeFor(code), fmt.Sprintf("%s: %s", code, message), err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
