package service

import (
	"errors"
	"strings"
)

var (
	ErrDraftNotFound     = errors.New("draft not found")
	ErrAutosaveFailed    = errors.New("autosave failed")
	ErrFinalizeFailed    = errors.New("finalize failed")
	ErrInvalidStatus     = errors.New("invalid intake status")
	ErrInvalidToken      = errors.New("invalid intake token")
	ErrDuplicateIntake   = errors.New("an intake has already been submitted for this transaction")
	ErrIntakeNotFound    = errors.New("intake record not found")
	ErrEmptyStatusUpdate = errors.New("status or admin_notes is required")
)

type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every failing field, not just the first one.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
