// Package util provides utility functions and types for the diagnostics server.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrNotFound.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., ConfigError, BindError). Each type
//     implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
//
// All custom error types must implement:
//
//	Error() string           – human-readable message
//	Unwrap() error           – if the type wraps another error
//	Is(target error) bool    – for errors.Is() compatibility
package util

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDuplicatePattern = errors.New("duplicate route pattern")
	ErrAlreadyStarted   = errors.New("already started")
	ErrNotStarted       = errors.New("not started")
	ErrClosed           = errors.New("closed")
	ErrPoolClosed       = errors.New("worker pool closed")
	ErrDiscovery        = errors.New("handler discovery failed")
)

// ConfigError represents a configuration-related error.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with a cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Fields  map[string]string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s (fields: %v)", e.Message, e.Fields)
}

// Is checks if the error matches the target.
func (e *ValidationError) Is(target error) bool {
	if target == ErrInvalidInput {
		return true
	}
	_, ok := target.(*ValidationError)
	return ok
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message, Fields: make(map[string]string)}
}

// AddField adds a field error.
func (e *ValidationError) AddField(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// HasErrors reports whether any field error was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// DuplicatePatternError is returned when a route pattern is registered twice.
type DuplicatePatternError struct {
	Pattern string
}

// Error implements the error interface.
func (e *DuplicatePatternError) Error() string {
	return fmt.Sprintf("duplicate route pattern: %s", e.Pattern)
}

// Is checks if the error matches the target.
func (e *DuplicatePatternError) Is(target error) bool {
	if target == ErrDuplicatePattern {
		return true
	}
	_, ok := target.(*DuplicatePatternError)
	return ok
}

// NewDuplicatePatternError creates a new DuplicatePatternError.
func NewDuplicatePatternError(pattern string) *DuplicatePatternError {
	return &DuplicatePatternError{Pattern: pattern}
}

// BindError represents a failure to bind a listener.
type BindError struct {
	Address string
	Cause   error
}

// Error implements the error interface.
func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Address, e.Cause)
}

// Unwrap returns the underlying error.
func (e *BindError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *BindError) Is(target error) bool {
	_, ok := target.(*BindError)
	return ok || errors.Is(e.Cause, target)
}

// NewBindError creates a new BindError.
func NewBindError(address string, cause error) *BindError {
	return &BindError{Address: address, Cause: cause}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClosed checks if an error signals a closed component.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, ErrPoolClosed)
}
