// Package errors provides centralized error definitions and error handling
// utilities for the fmtgate codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and
// classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - ModuleError: errors related to module discovery and validation
//   - ProcessError: errors from the external formatting command
//
// Semantic errors represent common error conditions:
//   - TimeoutError: operation exceeded its deadline
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewModuleError("descriptor unreadable", cause).WithModule("core/api")
//	err := errors.NewTimeoutError("waiting for module format", 5*time.Minute)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrLockHeld) { ... }
//	if errors.IsTimeout(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sentinel errors for well-known conditions.
var (
	// ErrSessionActive indicates a formatting session is already in flight
	// on this coordinator instance.
	ErrSessionActive = errors.New("formatting session already active")

	// ErrRecentlyProcessed indicates the same change set was formatted
	// within the dedupe window and the session was skipped.
	ErrRecentlyProcessed = errors.New("change set recently processed")

	// ErrLockHeld indicates the status-channel lock file is held by an
	// unexpired session.
	ErrLockHeld = errors.New("status lock held by another session")

	// ErrNoStatus indicates no status record exists in the channel.
	ErrNoStatus = errors.New("no status record present")

	// ErrCancelled indicates the operation was cancelled by request.
	ErrCancelled = errors.New("operation cancelled")
)

// ModuleError represents errors related to module discovery and validation.
type ModuleError struct {
	Module  string
	message string
	cause   error
}

// NewModuleError creates a new ModuleError.
func NewModuleError(message string, cause error) *ModuleError {
	return &ModuleError{message: message, cause: cause}
}

// WithModule adds the module's relative path to the error context.
func (e *ModuleError) WithModule(relPath string) *ModuleError {
	e.Module = relPath
	return e
}

// Error returns the formatted error message.
func (e *ModuleError) Error() string {
	prefix := "module error"
	if e.Module != "" {
		prefix = fmt.Sprintf("module error [module=%s]", e.Module)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Unwrap returns the underlying cause.
func (e *ModuleError) Unwrap() error { return e.cause }

// Is checks if this error matches the target.
func (e *ModuleError) Is(target error) bool {
	_, ok := target.(*ModuleError)
	return ok
}

// ProcessError represents a failure of the external formatting command.
// Tail holds the trailing output lines retained for diagnostics.
type ProcessError struct {
	Command  string
	ExitCode int
	Tail     []string
	cause    error
}

// NewProcessError creates a new ProcessError.
func NewProcessError(command string, exitCode int, cause error) *ProcessError {
	return &ProcessError{Command: command, ExitCode: exitCode, cause: cause}
}

// WithTail attaches the trailing output lines of the failed process.
func (e *ProcessError) WithTail(lines []string) *ProcessError {
	e.Tail = lines
	return e
}

// Error returns the formatted error message.
func (e *ProcessError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("process error [command=%s]: %v", e.Command, e.cause)
	}
	return fmt.Sprintf("process error [command=%s]: exit code %d", e.Command, e.ExitCode)
}

// Unwrap returns the underlying cause.
func (e *ProcessError) Unwrap() error { return e.cause }

// Is checks if this error matches the target.
func (e *ProcessError) Is(target error) bool {
	_, ok := target.(*ProcessError)
	return ok
}

// TimeoutError represents an operation that exceeded its deadline.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Duration: duration}
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Duration, e.Operation)
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	_, ok := target.(*TimeoutError)
	return ok
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var timeout *TimeoutError
	return As(err, &timeout)
}

// IsCancelled reports whether err is (or wraps) a cancellation.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrCancelled)
}
