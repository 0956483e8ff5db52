package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation reports unusable input: missing sizing, empty selection, bad edit values.
	ErrValidation = errors.New("validation error")
	// ErrNotFound reports missing tenant data the module cannot quote without.
	ErrNotFound = errors.New("not found")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// productUnavailable matches both ErrNotFound and ErrValidation: the selection
// is invalid because the catalog entry is gone.
func productUnavailable(id int64, archived bool) error {
	reason := "not found"
	if archived {
		reason = "archived"
	}
	return fmt.Errorf("%w: %w: product %d is %s", ErrNotFound, ErrValidation, id, reason)
}
