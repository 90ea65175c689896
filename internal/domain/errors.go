package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors returned by services and repositories. Handlers classify
// them with errors.Is to pick a status code.
var (
	// ErrForbidden is returned when the caller lacks the librarian capability.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a borrow window overlaps an approved loan.
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned for malformed, missing, or duplicate fields.
	ErrValidation = errors.New("validation failed")
)

// ValidationError carries field-level detail for a failed validation.
// It unwraps to ErrValidation so callers can classify it without inspecting
// the fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a single-field ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Fields: map[string]string{field: message}}
}
