// Package util provides utility functions and types shared by the
// diagnostics server packages.
//
// # Context Helpers
//
// Context utilities for request-scoped data:
//
//	ctx = util.ContextWithRequestID(ctx, "req-123")
//	requestID := util.RequestIDFromContext(ctx)
//
// # Error Types
//
// Structured error types for consistent error handling:
//
//   - ConfigError: configuration validation errors
//   - DuplicatePatternError: a route pattern registered twice
//   - BindError: a listener that could not be bound
//   - Common sentinel errors: ErrNotFound, ErrClosed, etc.
//
// # Validation
//
// Input validation helpers for ports, patterns and percentages:
//
//	err := util.ValidatePort(9990)
//	err := util.ValidatePattern("/stats.json")
package util
