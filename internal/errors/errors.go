package errors

import (
	"errors"
	"fmt"
)

// ServiceError is the structured error type for linesearch.
// It carries a stable code for logs and a short message that is safe to
// send to clients.
type ServiceError struct {
	// Code is the unique error code (e.g., "ERR_301_INVALID_JSON").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Protocol, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with ServiceError.
func (e *ServiceError) Is(target error) bool {
	if t, ok := target.(*ServiceError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *ServiceError) WithDetail(key, value string) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new ServiceError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *ServiceError {
	return &ServiceError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a ServiceError from an existing error.
// The error's message becomes the ServiceError message.
func Wrap(code string, err error) *ServiceError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *ServiceError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates a corpus I/O error.
func IOError(message string, cause error) *ServiceError {
	return New(ErrCodeCorpusUnreadable, message, cause)
}

// ProtocolError creates a wire protocol error with the given code.
func ProtocolError(code string, message string) *ServiceError {
	return New(code, message, nil)
}

// SearchError creates a search index error with the given code.
func SearchError(code string, message string) *ServiceError {
	return New(code, message, nil)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ServiceError {
	return New(ErrCodeInternal, message, cause)
}

// As extracts a ServiceError from an error chain.
func As(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort startup.
func IsFatal(err error) bool {
	if se, ok := As(err); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a ServiceError.
// Returns empty string if not a ServiceError.
func GetCode(err error) string {
	if se, ok := As(err); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a ServiceError.
// Returns empty string if not a ServiceError.
func GetCategory(err error) Category {
	if se, ok := As(err); ok {
		return se.Category
	}
	return ""
}

// Message returns the client-safe message of err. Errors that are not
// ServiceErrors are reported generically so internal details never reach
// the wire.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if se, ok := As(err); ok {
		return se.Message
	}
	return "Internal server error"
}
