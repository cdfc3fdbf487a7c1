package search

import (
	"errors"
	"fmt"
)

// ErrCodeSearchExhausted indicates no candidate correlated with the target.
const ErrCodeSearchExhausted = "SEARCH_EXHAUSTED"

// SearchExhaustedError is returned when every evaluated candidate had zero
// correlation with the target (including non-finite or constant candidates).
type SearchExhaustedError struct {
	Generations int
	Evaluated   int
}

func (e *SearchExhaustedError) Error() string {
	return fmt.Sprintf("%s: no candidate with nonzero correlation after %d generation(s), %d distinct candidate(s)",
		ErrCodeSearchExhausted, e.Generations, e.Evaluated)
}

// IsSearchExhausted reports whether err is (or wraps) a SearchExhaustedError.
func IsSearchExhausted(err error) bool {
	var se *SearchExhaustedError
	return errors.As(err, &se)
}
