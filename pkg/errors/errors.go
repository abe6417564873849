// Package errors defines the error taxonomy shared across the gateway.
// Every failure crossing a component boundary is classified so that the
// strategies can apply the propagation policy: store-write failures are
// swallowed, store-read failures degrade to cache misses, and network
// failures are recovered from cache whenever possible.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType defines different categories of errors
type ErrorType string

const (
	ErrorTypeNetwork    ErrorType = "NETWORK"
	ErrorTypeStoreRead  ErrorType = "STORE_READ"
	ErrorTypeStoreWrite ErrorType = "STORE_WRITE"
	ErrorTypeNoFallback ErrorType = "NO_FALLBACK"
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeInternal   ErrorType = "INTERNAL"
)

// AppError is the custom error type for the gateway
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructor functions for different error types

// NewNetwork creates a network error (fetch failed or timed out)
func NewNetwork(message string, err error) error {
	return &AppError{Type: ErrorTypeNetwork, Message: message, Err: err}
}

// NewStoreRead creates a store read error; callers treat it as a cache miss
func NewStoreRead(message string, err error) error {
	return &AppError{Type: ErrorTypeStoreRead, Message: message, Err: err}
}

// NewStoreWrite creates a store write error; never fatal to the request path
func NewStoreWrite(message string, err error) error {
	return &AppError{Type: ErrorTypeStoreWrite, Message: message, Err: err}
}

// NewNoFallback creates the terminal error surfaced when no cache, no
// network and no offline fallback exist for a request
func NewNoFallback(message string, err error) error {
	return &AppError{Type: ErrorTypeNoFallback, Message: message, Err: err}
}

// NewValidation creates a validation error
func NewValidation(message string) error {
	return &AppError{Type: ErrorTypeValidation, Message: message}
}

// NewInternal creates an internal error
func NewInternal(message string, err error) error {
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// Wrap wraps an error with additional context, preserving its type
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Type:    appErr.Type,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
		}
	}

	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// Type checking functions

func isType(err error, t ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}

// IsNetwork checks if an error is a network error
func IsNetwork(err error) bool { return isType(err, ErrorTypeNetwork) }

// IsStoreRead checks if an error is a store read error
func IsStoreRead(err error) bool { return isType(err, ErrorTypeStoreRead) }

// IsStoreWrite checks if an error is a store write error
func IsStoreWrite(err error) bool { return isType(err, ErrorTypeStoreWrite) }

// IsNoFallback checks if an error is a no-fallback error
func IsNoFallback(err error) bool { return isType(err, ErrorTypeNoFallback) }

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool { return isType(err, ErrorTypeValidation) }

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool { return isType(err, ErrorTypeInternal) }
