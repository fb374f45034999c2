package errors

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrConfiguration = errors.New("invalid configuration")

	// Payment record errors
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrReconciliationConflict = errors.New("reconciliation conflict")
	ErrCheckoutFailed         = errors.New("checkout session could not be created")

	// Catalog and user errors
	ErrProductNotFound      = errors.New("product not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrOptimisticLockFailed = errors.New("optimistic lock conflict")

	// Processor errors
	ErrProviderUnavailable = errors.New("payment processor unavailable")
	ErrProviderRejected    = errors.New("request rejected by payment processor")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
	ErrLockNotHeld           = errors.New("lock not held")

	// Access errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// Unwrap lets callers match validation failures with errors.Is(err, ErrValidationFailed).
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Configuration builds an ErrConfiguration for the named setting.
func Configuration(setting, message string) *DomainError {
	return NewDomainError("configuration_error", setting+": "+message, ErrConfiguration)
}
