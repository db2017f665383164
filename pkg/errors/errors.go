// Package errors provides the structured error system for the caching
// engine: a small closed set of error kinds returned as explicit values, so
// callers can distinguish a soft miss from a real fault without matching on
// log messages.
package errors

import (
	"fmt"
	"time"
)

// Code identifies the kind of a cache error.
type Code string

const (
	// CodeConnectivity means a tier backend is unreachable. The tier is
	// treated as a miss for the operation; no retry happens within the call.
	CodeConnectivity Code = "CONNECTIVITY"

	// CodeSerialization means stored bytes could not be decoded. Treated as
	// a miss; the corrupt entry is left for TTL expiry or sweep.
	CodeSerialization Code = "SERIALIZATION"

	// CodeColdStore means the durable tier failed (connection, constraint
	// violation). Operations proceed without the cold store's contribution.
	CodeColdStore Code = "COLD_STORE"

	// CodeNotFound means the key is absent from a tier, or from all tiers.
	CodeNotFound Code = "NOT_FOUND"
)

// CacheError is a structured error with component and operation context.
type CacheError struct {
	Code      Code      `json:"code"`
	Message   string    `json:"message"`
	Component string    `json:"component,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error wrapping compatibility.
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code (for errors.Is compatibility).
func (e *CacheError) Is(target error) bool {
	if t, ok := target.(*CacheError); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a CacheError with the given code and message.
func New(code Code, message string) *CacheError {
	return &CacheError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates a CacheError with a formatted message.
func Newf(code Code, format string, args ...interface{}) *CacheError {
	return New(code, fmt.Sprintf(format, args...))
}

// WithComponent sets the component that produced the error.
func (e *CacheError) WithComponent(component string) *CacheError {
	e.Component = component
	return e
}

// WithOperation sets the operation during which the error occurred.
func (e *CacheError) WithOperation(operation string) *CacheError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause.
func (e *CacheError) WithCause(cause error) *CacheError {
	e.Cause = cause
	return e
}

func hasCode(err error, code Code) bool {
	for err != nil {
		if ce, ok := err.(*CacheError); ok {
			return ce.Code == code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsConnectivity reports whether err is a connectivity fault.
func IsConnectivity(err error) bool { return hasCode(err, CodeConnectivity) }

// IsSerialization reports whether err is a decode fault.
func IsSerialization(err error) bool { return hasCode(err, CodeSerialization) }

// IsColdStore reports whether err is a durable-tier fault.
func IsColdStore(err error) bool { return hasCode(err, CodeColdStore) }

// IsNotFound reports whether err means the key is absent.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }
