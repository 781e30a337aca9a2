package models

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the pipeline and the retrieval engine. Callers match with errors.Is.
var (
	ErrExtraction    = errors.New("extraction failed")
	ErrEmbedding     = errors.New("embedding failed")
	ErrIndexWrite    = errors.New("index write failed")
	ErrBranchTimeout = errors.New("retrieval branch failed")
	ErrValidation    = errors.New("validation failed")
	ErrSearchFailed  = errors.New("search failed")
	ErrNotFound      = errors.New("not found")
)

// ValidationError reports a malformed query or ingest parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StageError is returned by the ingestion pipeline and names the stage that failed.
type StageError struct {
	Stage      string
	DocumentID string
	Err        error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("document %s: %s: %v", e.DocumentID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
