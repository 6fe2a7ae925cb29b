// Package errors provides centralized error definitions and error handling utilities
// for wheatley. It defines sentinel errors, domain-specific error types for the
// tower connection and method generation, semantic error types, and retry
// classification.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - TowerError: errors talking to a Ringing Room tower (page fetch, socket, protocol)
//   - MethodError: errors building the rows the bot rings (place notation, stage)
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid configuration or arguments
//   - TimeoutError: joining a tower took too long
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewTowerError("join failed", errors.ErrNotConnected).WithTowerID(123456789)
//	err := errors.NewMethodError("bad notation", errors.ErrInvalidPlaceNotation).WithNotation("x1x").WithPosition(2)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrNotConnected) { ... }
//
//	var towerErr *errors.TowerError
//	if errors.As(err, &towerErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
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

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Tower-related sentinel errors
var (
	// ErrNotConnected indicates that the tower socket is not open.
	ErrNotConnected = New("not connected to tower")
	// ErrServerIPNotFound indicates that the tower page did not name a socket server.
	ErrServerIPNotFound = New("server_ip not found in tower page")
	// ErrProtocol indicates a malformed or unexpected socket.io packet.
	ErrProtocol = New("socket.io protocol error")
	// ErrTowerClosed indicates that the server closed the connection.
	ErrTowerClosed = New("tower connection closed")
)

// Method-related sentinel errors
var (
	// ErrInvalidPlaceNotation indicates that place notation could not be parsed.
	ErrInvalidPlaceNotation = New("invalid place notation")
	// ErrInvalidStage indicates a stage the bot cannot ring.
	ErrInvalidStage = New("invalid stage")
	// ErrStageMismatch indicates that the method and the tower disagree on the number of bells.
	ErrStageMismatch = New("method stage does not match tower")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// WheatleyError is the base interface for all wheatley errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type WheatleyError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

func prefixed(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// TowerError represents errors talking to a Ringing Room tower.
//
// Dropped connections are retryable by default; the caller may reconnect.
//
// Example:
//
//	err := errors.NewTowerError("read failed", io.ErrUnexpectedEOF).WithTowerID(123456789)
//	fmt.Println(err) // "tower error [tower=123456789]: read failed: unexpected EOF"
type TowerError struct {
	baseError
	TowerID int
	Event   string
}

// NewTowerError creates a new TowerError.
func NewTowerError(message string, cause error) *TowerError {
	return &TowerError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: true,
		},
	}
}

// WithTowerID adds the tower ID to the error context.
func (e *TowerError) WithTowerID(id int) *TowerError {
	e.TowerID = id
	return e
}

// WithEvent adds the socket.io event name to the error context.
func (e *TowerError) WithEvent(event string) *TowerError {
	e.Event = event
	return e
}

// WithSeverity sets the error severity.
func (e *TowerError) WithSeverity(s Severity) *TowerError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *TowerError) WithRetryable(r bool) *TowerError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TowerError) Error() string {
	var parts []string
	if e.TowerID != 0 {
		parts = append(parts, fmt.Sprintf("tower=%d", e.TowerID))
	}
	if e.Event != "" {
		parts = append(parts, fmt.Sprintf("event=%s", e.Event))
	}
	return prefixed("tower error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *TowerError) Is(target error) bool {
	if _, ok := target.(*TowerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// MethodError represents errors building the rows the bot rings.
//
// Example:
//
//	err := errors.NewMethodError("unexpected character", errors.ErrInvalidPlaceNotation).
//		WithNotation("x1y").WithPosition(2)
//	fmt.Println(err) // "method error [notation=x1y, pos=2]: unexpected character: invalid place notation"
type MethodError struct {
	baseError
	Notation string
	Position int
	Stage    int
}

// NewMethodError creates a new MethodError.
func NewMethodError(message string, cause error) *MethodError {
	return &MethodError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: false,
		},
		Position: -1,
	}
}

// WithNotation adds the place notation being parsed.
func (e *MethodError) WithNotation(notation string) *MethodError {
	e.Notation = notation
	return e
}

// WithPosition adds the byte offset in the notation where parsing failed.
func (e *MethodError) WithPosition(pos int) *MethodError {
	e.Position = pos
	return e
}

// WithStage adds the stage to the error context.
func (e *MethodError) WithStage(stage int) *MethodError {
	e.Stage = stage
	return e
}

// Error returns the formatted error message.
func (e *MethodError) Error() string {
	var parts []string
	if e.Notation != "" {
		parts = append(parts, fmt.Sprintf("notation=%s", e.Notation))
	}
	if e.Position >= 0 {
		parts = append(parts, fmt.Sprintf("pos=%d", e.Position))
	}
	if e.Stage != 0 {
		parts = append(parts, fmt.Sprintf("stage=%d", e.Stage))
	}
	return prefixed("method error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *MethodError) Is(target error) bool {
	if _, ok := target.(*MethodError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("stage must be at least 3").WithField("method.stage").WithValue(2)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:   message,
			severity:  SeverityWarning,
			retryable: false,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return prefixed("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("dialing tower", 10*time.Second)
//	fmt.Println(err) // "timeout error: dialing tower (timeout: 10s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:   operation,
			severity:  SeverityWarning,
			retryable: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing WheatleyError with IsRetryable() returning true
//   - Errors wrapping ErrTimeout or ErrTowerClosed
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var wErr WheatleyError
	if As(err, &wErr) {
		return wErr.IsRetryable()
	}

	return Is(err, ErrTimeout) || Is(err, ErrTowerClosed)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement WheatleyError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var wErr WheatleyError
	if As(err, &wErr) {
		return wErr.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to join tower")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
