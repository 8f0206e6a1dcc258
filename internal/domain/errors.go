package domain

import (
	"fmt"
	"time"
)

// EngineError represents a standardized error returned to host collaborators
type EngineError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	cause     error
}

// Error implements the error interface
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is and errors.As.
func (e *EngineError) Unwrap() error {
	return e.cause
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeDuplicateStudy    = "DUPLICATE_STUDY"
	ErrCodeStudyNotFound     = "STUDY_NOT_FOUND"
	ErrCodeInvalidRange      = "INVALID_RANGE"
	ErrCodeMalformedSnapshot = "MALFORMED_SNAPSHOT"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewEngineError creates a new EngineError with timestamp
func NewEngineError(code, message, details string) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// WrapEngineError creates an EngineError that unwraps to cause.
func WrapEngineError(code, message string, cause error) *EngineError {
	e := NewEngineError(code, message, "")
	if cause != nil {
		e.Details = cause.Error()
		e.cause = cause
	}
	return e
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
