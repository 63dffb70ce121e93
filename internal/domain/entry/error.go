package entry

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("entry not found")
	ErrInvalidEntry = errors.New("invalid entry")
	ErrEmptyBatch   = errors.New("empty batch")
)

// ValidationError называет первое отсутствующее или некорректное поле
// по его имени в wire-формате.
type ValidationError struct {
	Field   string
	Missing bool
}

func (e *ValidationError) Error() string {
	if e.Missing {
		return fmt.Sprintf("missing required field: %s", e.Field)
	}
	return fmt.Sprintf("invalid field: %s", e.Field)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidEntry
}

func missing(field string) error {
	return &ValidationError{Field: field, Missing: true}
}

func invalid(field string) error {
	return &ValidationError{Field: field}
}
