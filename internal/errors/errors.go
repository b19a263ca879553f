// Package errors provides structured error types for the LogSphere system.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryParse      ErrorCategory = "PARSE"
	ErrCategoryIndex      ErrorCategory = "INDEX"
	ErrCategoryQuery      ErrorCategory = "QUERY"
	ErrCategoryStore      ErrorCategory = "STORE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidExtension = "INVALID_EXTENSION"
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeEmptyFile        = "EMPTY_FILE"

	// Parse codes
	CodeMalformedInput    = "MALFORMED_INPUT"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"

	// Index codes
	CodeIndexNotBuilt     = "INDEX_NOT_BUILT"
	CodeRebuildInProgress = "REBUILD_IN_PROGRESS"

	// Query codes
	CodeInvalidQuery = "INVALID_QUERY"

	// Store codes
	CodeStoreUnavailable = "STORE_UNAVAILABLE"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// LogSphereError is the structured error type used throughout the system.
type LogSphereError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *LogSphereError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *LogSphereError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *LogSphereError) Is(target error) bool {
	var t *LogSphereError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new LogSphereError.
func New(category ErrorCategory, code, message string) *LogSphereError {
	return &LogSphereError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new LogSphereError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *LogSphereError {
	return &LogSphereError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *LogSphereError) WithDetails(details map[string]interface{}) *LogSphereError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var le *LogSphereError
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a LogSphereError.
func GetCategory(err error) ErrorCategory {
	var le *LogSphereError
	if errors.As(err, &le) {
		return le.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a LogSphereError.
func GetCode(err error) string {
	var le *LogSphereError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. The core never
// retries internally; the flag tells callers whether a retry can succeed.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStore && code == CodeStoreUnavailable:
		return true
	case category == ErrCategoryIndex && code == CodeRebuildInProgress:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *LogSphereError {
	return New(ErrCategoryValidation, code, message)
}

func NewParseError(code, message string, cause error) *LogSphereError {
	return Wrap(ErrCategoryParse, code, message, cause)
}

func NewIndexError(code, message string) *LogSphereError {
	return New(ErrCategoryIndex, code, message)
}

func NewQueryError(code, message string) *LogSphereError {
	return New(ErrCategoryQuery, code, message)
}

func NewStoreError(message string, cause error) *LogSphereError {
	return Wrap(ErrCategoryStore, CodeStoreUnavailable, message, cause)
}

func NewInternalError(message string, cause error) *LogSphereError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
