package pagination

import (
	"errors"
	"fmt"
)

// Precondition errors, reported before any fetch is made.
var (
	// ErrInvalidPageSize is returned when the requested page size is not positive.
	ErrInvalidPageSize = errors.New("page size must be positive")

	// ErrInvalidStartIndex is returned when the requested start index is negative.
	ErrInvalidStartIndex = errors.New("start index must not be negative")
)

// FetchError wraps a failure of the page fetcher with the offset that was
// being requested when it happened.
type FetchError struct {
	StartIndex int
	PageSize   int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page at start index %d (size %d): %v", e.StartIndex, e.PageSize, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}
