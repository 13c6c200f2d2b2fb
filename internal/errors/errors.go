// Package errors provides structured error types for the logmill system.
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
	ErrCategoryParse    ErrorCategory = "PARSE"
	ErrCategoryLoad     ErrorCategory = "LOAD"
	ErrCategoryAnalysis ErrorCategory = "ANALYSIS"
	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryConfig   ErrorCategory = "CONFIG"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Parse codes (per-row, during ingestion)
	CodeMalformedRow  = "MALFORMED_ROW"
	CodeInvalidStatus = "INVALID_STATUS"

	// Load codes (fatal, abort the run)
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeStrictParse       = "STRICT_PARSE"

	// Analysis codes (per-analysis, isolated)
	CodeAnalysisTimeout   = "ANALYSIS_TIMEOUT"
	CodeAnalysisCancelled = "ANALYSIS_CANCELLED"

	// Storage codes
	CodeExportFailed = "EXPORT_FAILED"
	CodeUploadFailed = "UPLOAD_FAILED"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Error is the structured error type used throughout the system.
type Error struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new Error.
func New(category ErrorCategory, code, message string) *Error {
	return &Error{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *Error {
	return &Error{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a logmill Error.
func GetCategory(err error) ErrorCategory {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a logmill Error.
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// isRetryable determines if an error code is worth retrying.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryAnalysis && code == CodeAnalysisTimeout:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewParseError(code, message string) *Error {
	return New(ErrCategoryParse, code, message)
}

func NewLoadError(code, message string, cause error) *Error {
	return Wrap(ErrCategoryLoad, code, message, cause)
}

func NewAnalysisError(code, message string, cause error) *Error {
	return Wrap(ErrCategoryAnalysis, code, message, cause)
}

func NewStorageError(code, message string, cause error) *Error {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewConfigError(message string) *Error {
	return New(ErrCategoryConfig, CodeInvalidConfig, message)
}

func NewInternalError(message string, cause error) *Error {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
