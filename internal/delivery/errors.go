package delivery

import (
	"errors"
	"fmt"
	"time"
)

// Base error types
var (
	ErrUnresolvedPlugin = errors.New("no plugin registered for integration type")
	ErrTimeout          = errors.New("delivery timed out")
	ErrConfiguration    = errors.New("invalid integration configuration")
	ErrProtocol         = errors.New("payload template error")
	ErrTransport        = errors.New("transport failure")
)

// ErrorType categorizes a delivery failure. Configuration and protocol errors
// are terminal; transport and timeout failures may be retried when the
// template enables retries.
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeProtocol      ErrorType = "protocol"
	ErrorTypeTransport     ErrorType = "transport"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeUnresolved    ErrorType = "unresolved_plugin"
)

// Error is a structured error for delivery operations.
type Error struct {
	Type        ErrorType
	Op          string // operation that failed, e.g. "send", "validate_config"
	Integration string // integration name if known
	Err         error
	Timestamp   time.Time
}

func (e *Error) Error() string {
	if e.Integration != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Integration, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is maps error types back onto the base sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Type == ErrorTypeConfiguration
	case ErrProtocol:
		return e.Type == ErrorTypeProtocol
	case ErrTransport:
		return e.Type == ErrorTypeTransport
	case ErrTimeout:
		return e.Type == ErrorTypeTimeout
	case ErrUnresolvedPlugin:
		return e.Type == ErrorTypeUnresolved
	}
	return errors.Is(e.Err, target)
}

// Retryable reports whether a failure of this type may be retried.
func (e *Error) Retryable() bool {
	switch e.Type {
	case ErrorTypeTransport, ErrorTypeTimeout:
		return true
	}
	return false
}

// NewError creates a structured delivery error.
func NewError(t ErrorType, op, integration string, err error) *Error {
	return &Error{Type: t, Op: op, Integration: integration, Err: err, Timestamp: time.Now()}
}
