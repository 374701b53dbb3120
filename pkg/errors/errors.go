package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Ingestion and timetable-maintenance errors.
var (
	// ErrDatasetOutdated is raised before any write when the dataset cohort is
	// older than the latest stored cohort.
	ErrDatasetOutdated = New("DATASET_OUTDATED", http.StatusConflict, "dataset is older than the stored cohort")
	// ErrInconsistentState signals that the post-archival assertion failed and
	// the whole ingestion run was rolled back.
	ErrInconsistentState = New("INCONSISTENT_STATE", http.StatusInternalServerError, "cohort archival left unarchived rows")
	// ErrIngestInProgress is returned when the ingestion advisory lock is held.
	ErrIngestInProgress = New("INGEST_IN_PROGRESS", http.StatusConflict, "another ingestion run holds the lock")
	// ErrConsistency marks an impossible warning-state transition, i.e. removing
	// a section the warning set claims was never added.
	ErrConsistency          = New("CONSISTENCY_VIOLATION", http.StatusInternalServerError, "timetable warning state is inconsistent")
	ErrSlotClash            = New("SLOT_CLASH", http.StatusBadRequest, "section clashes with an occupied slot")
	ErrExamClash            = New("EXAM_CLASH", http.StatusBadRequest, "course exam clashes with another course")
	ErrDuplicateSectionType = New("DUPLICATE_SECTION_TYPE", http.StatusBadRequest, "timetable already holds a section of this type")
	ErrNotDraft             = New("NOT_DRAFT", http.StatusForbidden, "timetable is not a draft")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
