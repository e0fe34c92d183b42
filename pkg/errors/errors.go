package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrUniqueViolation marks a driver error caused by a unique constraint.
var ErrUniqueViolation = stderrors.New("unique constraint violated")

// ValidationError represents a validation failure with field-level details
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s - %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// GRPCStatus returns the gRPC status for this error
func (e *ValidationError) GRPCStatus() *status.Status {
	return status.New(codes.InvalidArgument, e.Error())
}

// RateLimitError is returned when a client has used up its request budget.
type RateLimitError struct {
	RequestsPerSecond float64
	BurstCapacity     int
}

// NewRateLimitError creates a new rate limit error
func NewRateLimitError(requestsPerSecond float64, burstCapacity int) *RateLimitError {
	return &RateLimitError{
		RequestsPerSecond: requestsPerSecond,
		BurstCapacity:     burstCapacity,
	}
}

// Error implements the error interface
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Rate limit exceeded: %.2f requests/second (burst capacity: %d)", e.RequestsPerSecond, e.BurstCapacity)
}

// GRPCStatus returns the gRPC status for this error
func (e *RateLimitError) GRPCStatus() *status.Status {
	return status.New(codes.ResourceExhausted, e.Error())
}

// InternalError represents an internal server error with context
type InternalError struct {
	Message string
	Err     error
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *InternalError {
	return &InternalError{
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface
func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *InternalError) Unwrap() error {
	return e.Err
}

// GRPCStatus returns the gRPC status for this error
func (e *InternalError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, e.Message)
}

// DriverError is returned when the database driver rejects one statement
// of a batch. Index is zero-based.
type DriverError struct {
	Index     int
	Statement string
	Err       error
}

// NewDriverError creates a new driver error for the statement at index.
func NewDriverError(index int, statement string, err error) *DriverError {
	return &DriverError{
		Index:     index,
		Statement: statement,
		Err:       err,
	}
}

// Error implements the error interface
func (e *DriverError) Error() string {
	return fmt.Sprintf("statement %d failed: %v", e.Index+1, e.Err)
}

// Unwrap returns the wrapped error
func (e *DriverError) Unwrap() error {
	return e.Err
}

// UniqueViolation reports whether the driver rejected the statement because
// of a unique constraint.
func (e *DriverError) UniqueViolation() bool {
	return stderrors.Is(e.Err, ErrUniqueViolation)
}

// GRPCStatus returns the gRPC status for this error
func (e *DriverError) GRPCStatus() *status.Status {
	if e.UniqueViolation() {
		return status.New(codes.AlreadyExists, e.Error())
	}
	return status.New(codes.Internal, e.Error())
}

// GRPCStatuser interface for errors that can provide gRPC status
type GRPCStatuser interface {
	GRPCStatus() *status.Status
}

// Code returns the gRPC code carried by err, or codes.Unknown when err
// does not carry one.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var s GRPCStatuser
	if stderrors.As(err, &s) {
		return s.GRPCStatus().Code()
	}
	return codes.Unknown
}
