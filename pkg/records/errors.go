package records

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of a record store failure.
// No class is fatal to the process; the class tells the caller how to report it.
type ErrorClass string

const (
	// ErrorClassNotFound indicates a missing source or an unknown record id.
	// The caller reports it and continues, possibly with an empty store.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassFormat indicates a field that could not be coerced to its type.
	// The offending row is skipped, or the load stops at it in strict mode.
	ErrorClassFormat ErrorClass = "format"

	// ErrorClassConflict indicates an id collision on add.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassUnknown covers any other I/O failure.
	ErrorClassUnknown ErrorClass = "unknown"
)

// Common error codes.
const (
	ErrCodeSourceMissing = "SOURCE_MISSING"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeBadField      = "BAD_FIELD"
	ErrCodeBadHeader     = "BAD_HEADER"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeIO            = "IO_ERROR"
)

// RecordError is a classified error raised by the record store or a backend.
type RecordError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// RecordID is the record id involved, if any.
	RecordID string `json:"record_id,omitempty"`

	// Operation is the store operation that failed (load, add, update, ...).
	Operation string `json:"operation,omitempty"`

	// Row is the 1-based data row of a source file, 0 when not applicable.
	Row int `json:"row,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.RecordID != "" {
		msg += fmt.Sprintf(" (id=%s)", e.RecordID)
	}
	if e.Row > 0 {
		msg += fmt.Sprintf(" (row=%d)", e.Row)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// ClassName returns the error class as a plain string for metrics labels.
func (e *RecordError) ClassName() string {
	return string(e.Class)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *RecordError) Unwrap() error {
	return e.Err
}

// Is matches another *RecordError with the same class and code.
// An empty code on the target matches any code of that class.
func (e *RecordError) Is(target error) bool {
	t, ok := target.(*RecordError)
	if !ok {
		return false
	}
	if e.Class != t.Class {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// NewNotFoundError creates a new not-found error.
func NewNotFoundError(message string, err error) *RecordError {
	return &RecordError{
		Class:   ErrorClassNotFound,
		Code:    ErrCodeNotFound,
		Message: message,
		Err:     err,
	}
}

// NewFormatError creates a new format error.
func NewFormatError(message string, err error) *RecordError {
	return &RecordError{
		Class:   ErrorClassFormat,
		Code:    ErrCodeBadField,
		Message: message,
		Err:     err,
	}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *RecordError {
	return &RecordError{
		Class:   ErrorClassConflict,
		Code:    ErrCodeAlreadyExists,
		Message: message,
		Err:     err,
	}
}

// NewUnknownError creates a new unclassified I/O error.
func NewUnknownError(message string, err error) *RecordError {
	return &RecordError{
		Class:   ErrorClassUnknown,
		Code:    ErrCodeIO,
		Message: message,
		Err:     err,
	}
}

// WithRecord adds record id context to an error.
func (e *RecordError) WithRecord(id string) *RecordError {
	e.RecordID = id
	return e
}

// WithOperation adds operation context to an error.
func (e *RecordError) WithOperation(operation string) *RecordError {
	e.Operation = operation
	return e
}

// WithCode sets the error code.
func (e *RecordError) WithCode(code string) *RecordError {
	e.Code = code
	return e
}

// WithRow adds the source row number to an error.
func (e *RecordError) WithRow(row int) *RecordError {
	e.Row = row
	return e
}

// ClassOf returns the class of err, or ErrorClassUnknown for errors
// that were never classified. It returns "" for a nil error.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var e *RecordError
	if errors.As(err, &e) {
		return e.Class
	}
	return ErrorClassUnknown
}

// IsNotFound returns true if the error is classified as not found.
func IsNotFound(err error) bool {
	return hasClass(err, ErrorClassNotFound)
}

// IsFormat returns true if the error is classified as a format error.
func IsFormat(err error) bool {
	return hasClass(err, ErrorClassFormat)
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	return hasClass(err, ErrorClassConflict)
}

// IsUnknown returns true for unclassified errors and those classified unknown.
func IsUnknown(err error) bool {
	return err != nil && ClassOf(err) == ErrorClassUnknown
}

func hasClass(err error, class ErrorClass) bool {
	var e *RecordError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// classify wraps err as an unknown error unless it already carries a class.
func classify(err error, operation string) error {
	if err == nil {
		return nil
	}
	var e *RecordError
	if errors.As(err, &e) {
		if e.Operation == "" {
			e.Operation = operation
		}
		return err
	}
	return NewUnknownError(operation+" failed", err).WithOperation(operation)
}
