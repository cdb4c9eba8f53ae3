package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeDelivery       = "DELIVERY_ERROR"
	ErrCodeClassification = "CLASSIFICATION_ERROR"
	ErrCodeDatabase       = "DATABASE_ERROR"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// APIError represents a standardized error response envelope.
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError represents input validation failures. The offending field
// is always identified so the caller can surface it to the clinician.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError is returned when an explicitly requested entity (cohort,
// patient, intervention) does not exist. Never silently ignored.
type NotFoundError struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Kind, e.Name, ErrNotFound)
}

// Unwrap allows errors.Is(err, ErrNotFound) checks.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(kind, name string) *NotFoundError {
	return &NotFoundError{Kind: kind, Name: name}
}

// DeliveryError is surfaced when the external notification collaborator
// fails. Classification and notification are independent failure domains:
// a DeliveryError never invalidates a classification result.
type DeliveryError struct {
	Channel   string `json:"channel"`
	PatientID string `json:"patient_id"`
	Reason    string `json:"reason"`
	Cause     error  `json:"-"`
}

// Error implements the error interface
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s to patient %s failed: %s", e.Channel, e.PatientID, e.Reason)
}

// Unwrap exposes the underlying transport error.
func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// NewDeliveryError creates a new DeliveryError
func NewDeliveryError(channel, patientID, reason string, cause error) *DeliveryError {
	return &DeliveryError{
		Channel:   channel,
		PatientID: patientID,
		Reason:    reason,
		Cause:     cause,
	}
}

// IsDeliveryError reports whether err is (or wraps) a DeliveryError.
func IsDeliveryError(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}
