// Package apperrors provides sentinel and custom error types for the matching engine.
//
// Provider and parse failures are values the engine degrades on; only dimension
// mismatches are treated as caller bugs.
package apperrors

import (
	"errors"
	"fmt"

	"github.com/formbricks/riskmatch/pkg/embeddings"
)

var (
	// ErrMalformedResponse is returned when a provider answered but the body could not be used
	// (unparsable JSON, missing or empty embedding, wrong shape).
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrDimensionMismatch is returned when two compared vectors differ in length.
	ErrDimensionMismatch = embeddings.ErrDimensionMismatch
	// ErrInsufficientInput is returned when normalized text is too short or sparse to match on.
	ErrInsufficientInput = errors.New("insufficient input data")
	// ErrJudgeParse is returned when a judge reply contains neither JSON nor a usable score.
	ErrJudgeParse = errors.New("judge reply could not be parsed")
)

// ErrProviderUnavailable is the sentinel for transport or HTTP-level provider failures.
var ErrProviderUnavailable = &ProviderError{}

// ProviderError describes a failed call to an embedding or judge provider.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

// NewProviderError creates a ProviderError. statusCode is 0 for transport failures.
func NewProviderError(provider, op string, statusCode int, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Op:         op,
		StatusCode: statusCode,
		Err:        err,
	}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := "provider unavailable"
	if e.Provider != "" {
		msg = e.Provider + " " + e.Op + ": provider unavailable"
	}

	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is implements the error interface for error comparison.
func (e *ProviderError) Is(target error) bool {
	_, ok := target.(*ProviderError)

	return ok
}

// ErrNotFound represents a "not found" error.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}
