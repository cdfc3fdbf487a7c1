package regress

import (
	"errors"
	"fmt"
)

// ErrCodeSingularDesignMatrix indicates linearly dependent or degenerate terms.
const ErrCodeSingularDesignMatrix = "SINGULAR_DESIGN_MATRIX"

// SingularDesignMatrixError reports a design matrix that cannot be solved
// stably.
type SingularDesignMatrixError struct {
	// Reason is a short description such as "zero column" or "ill-conditioned".
	Reason string
	// Term is the offending term when a single column is at fault, else "".
	Term string
	// Condition is the estimated condition number, when computed.
	Condition float64
	// Level is the vertical level of a per-level fit, or -1.
	Level int
}

func (e *SingularDesignMatrixError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrCodeSingularDesignMatrix, e.Reason)
	if e.Term != "" {
		msg += fmt.Sprintf(" (term %s)", e.Term)
	}
	if e.Condition > 0 {
		msg += fmt.Sprintf(" (condition %.3g)", e.Condition)
	}
	if e.Level >= 0 {
		msg += fmt.Sprintf(" (level %d)", e.Level)
	}
	return msg
}

// IsSingularDesignMatrix reports whether err is (or wraps) a SingularDesignMatrixError.
func IsSingularDesignMatrix(err error) bool {
	var se *SingularDesignMatrixError
	return errors.As(err, &se)
}
