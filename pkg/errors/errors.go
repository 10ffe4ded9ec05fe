// Package errors defines the categorized error types used across the audit
// service. Every failure surfaced to a caller carries a category (which
// maps to a CLI exit code), a machine-readable code, and an actionable
// suggestion.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors.
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryDetection     ErrorCategory = "detection"
	CategoryStorage       ErrorCategory = "storage"
	CategoryNetwork       ErrorCategory = "network"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories.
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileCorrupted  ErrorCode = "file_corrupted"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"
	CodeEncodingError ErrorCode = "encoding_error"

	// Validation errors
	CodeNoValidData  ErrorCode = "no_valid_data"
	CodeMissingField ErrorCode = "missing_field"
	CodeOutOfRange   ErrorCode = "out_of_range"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Detection errors
	CodeCheckerFailed   ErrorCode = "checker_failed"
	CodeProcessingError ErrorCode = "processing_error"

	// Storage errors
	CodeStoreUnavailable ErrorCode = "store_unavailable"
	CodeWriteFailed      ErrorCode = "write_failed"
	CodeQueryFailed      ErrorCode = "query_failed"

	// Network errors
	CodeConnectionFailed ErrorCode = "connection_failed"
	CodeTimeout          ErrorCode = "timeout"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// AuditError is the base error type for all application errors.
type AuditError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error.
type Context map[string]interface{}

// Error implements the error interface.
func (e *AuditError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *AuditError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate CLI exit code for the error.
func (e *AuditError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryDetection, CategoryInternal:
		return 5
	case CategoryStorage:
		return 6
	case CategoryNetwork:
		return 7
	default:
		return 1
	}
}

// WithContext adds context information to the error.
func (e *AuditError) WithContext(key string, value interface{}) *AuditError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error.
func (e *AuditError) WithSuggestion(suggestion string) *AuditError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AuditError.
func New(category ErrorCategory, code ErrorCode, message string) *AuditError {
	return &AuditError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with AuditError context.
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *AuditError {
	if err == nil {
		return nil
	}

	return &AuditError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// FileError creates a file-related error.
func FileError(code ErrorCode, path string, err error) *AuditError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileCorrupted:
		message = fmt.Sprintf("file appears to be corrupted: %s", path)
		suggestion = "verify the file integrity and try using a backup copy"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return build(err, CategoryFile, code, message).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a parsing-related error.
func ParseError(code ErrorCode, file string, line int, column, value string, err error) *AuditError {
	var message, suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "check the data format and ensure it matches the expected structure"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in file %s", column, file)
		suggestion = "verify the file has all required columns with correct headers"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "correct the data format or remove the invalid entry"
	case CodeEncodingError:
		message = fmt.Sprintf("encoding error in file %s at line %d", file, line)
		suggestion = "ensure the file is saved in UTF-8 encoding"
	default:
		message = fmt.Sprintf("parse error in file %s at line %d", file, line)
		suggestion = "check the file format and data integrity"
	}

	return build(err, CategoryParse, code, message).
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column)
}

// ValidationError creates a validation-related error.
func ValidationError(code ErrorCode, field string, value interface{}, err error) *AuditError {
	var message, suggestion string

	switch code {
	case CodeNoValidData:
		message = "no valid transactions remain after normalization"
		suggestion = "ensure the file contains description and amount columns with usable values"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
		suggestion = "ensure the value is within the acceptable range"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return build(err, CategoryValidation, code, message).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error.
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *AuditError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(err, CategoryConfiguration, code, message).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// DetectionError creates a detection-related error for a failed checker.
func DetectionError(code ErrorCode, checker string, err error) *AuditError {
	var message, suggestion string

	switch code {
	case CodeCheckerFailed:
		message = fmt.Sprintf("checker '%s' failed", checker)
		suggestion = "review the input data quality and checker configuration"
	case CodeProcessingError:
		message = fmt.Sprintf("processing error during %s", checker)
		suggestion = "check system resources and try again"
	default:
		message = fmt.Sprintf("detection error during %s", checker)
		suggestion = "review the data and configuration"
	}

	return build(err, CategoryDetection, code, message).
		WithSuggestion(suggestion).
		WithContext("checker", checker)
}

// StorageError creates a persistence-related error.
func StorageError(code ErrorCode, operation string, err error) *AuditError {
	var message, suggestion string

	switch code {
	case CodeStoreUnavailable:
		message = fmt.Sprintf("audit store unavailable during %s", operation)
		suggestion = "check the database file path and permissions"
	case CodeWriteFailed:
		message = fmt.Sprintf("failed to write audit record during %s", operation)
		suggestion = "check disk space and database integrity"
	case CodeQueryFailed:
		message = fmt.Sprintf("audit history query failed during %s", operation)
		suggestion = "check the database file and query parameters"
	default:
		message = fmt.Sprintf("storage error during %s", operation)
		suggestion = "check the audit database and try again"
	}

	return build(err, CategoryStorage, code, message).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// NetworkError creates a network-related error.
func NetworkError(code ErrorCode, endpoint string, err error) *AuditError {
	var message, suggestion string

	switch code {
	case CodeConnectionFailed:
		message = fmt.Sprintf("connection failed to %s", endpoint)
		suggestion = "check network connectivity and endpoint availability"
	case CodeTimeout:
		message = fmt.Sprintf("timeout connecting to %s", endpoint)
		suggestion = "increase timeout setting or check the service"
	default:
		message = fmt.Sprintf("network error: %s", endpoint)
		suggestion = "check the connection and try again"
	}

	return build(err, CategoryNetwork, code, message).
		WithSuggestion(suggestion).
		WithContext("endpoint", endpoint)
}

// InternalError creates an internal error.
func InternalError(code ErrorCode, operation string, err error) *AuditError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	suggestion := "this is likely a bug - please report it with the error details"

	return build(err, CategoryInternal, code, message).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

func build(err error, category ErrorCategory, code ErrorCode, message string) *AuditError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// ErrorSummary provides a summary of multiple errors.
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	ByCode     map[ErrorCode]int     `json:"by_code"`
	Errors     []*AuditError         `json:"errors"`
}

// NewErrorSummary creates a new error summary.
func NewErrorSummary(errs []*AuditError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	return summary
}

// Error returns a formatted error message for the summary.
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category.
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// Utility functions

// IsAuditError checks if an error is an AuditError.
func IsAuditError(err error) bool {
	_, ok := err.(*AuditError)
	return ok
}

// AsAuditError extracts an AuditError from an error chain.
func AsAuditError(err error) (*AuditError, bool) {
	var auditErr *AuditError
	if errors.As(err, &auditErr) {
		return auditErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already an AuditError.
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *AuditError {
	if err == nil {
		return nil
	}

	if auditErr, ok := AsAuditError(err); ok {
		return auditErr
	}

	return Wrap(err, category, code, message)
}
