package domain

import (
	"errors"
	"testing"
	"time"
)

func TestEngineError(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		message string
		details string
	}{
		{
			name:    "Invalid range",
			code:    ErrCodeInvalidRange,
			message: "Unsupported date range",
			details: "expected one of 30d, 6m, 12m",
		},
		{
			name:    "Malformed snapshot",
			code:    ErrCodeMalformedSnapshot,
			message: "Snapshot contains an undated study",
			details: "study STU-001 has no timestamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewEngineError(tt.code, tt.message, tt.details)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}

			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestWrapEngineError(t *testing.T) {
	cause := NewValidationError("occurred_at", "timestamp is required", "")
	err := WrapEngineError(ErrCodeMalformedSnapshot, "snapshot failed validation", cause)

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected wrapped ValidationError, got %v", err)
	}
	if ve.Field != "occurred_at" {
		t.Errorf("Expected field occurred_at, got %s", ve.Field)
	}
	if err.Details != cause.Error() {
		t.Errorf("Expected details to carry cause, got %s", err.Details)
	}

	withSentinel := WrapEngineError(ErrCodeInvalidRange, "bad range", ErrInvalidRange)
	if !errors.Is(withSentinel, ErrInvalidRange) {
		t.Errorf("Expected errors.Is to find ErrInvalidRange")
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "String validation error",
			field:   "modality",
			message: "unknown modality",
			value:   "PET",
		},
		{
			name:    "Score validation error",
			field:   "findings.primary_score",
			message: "score must be within [0,100]",
			value:   120.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}

			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}
