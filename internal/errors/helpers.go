package errors

import (
	"fmt"
)

// NewValidationError creates a validation error with field context
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewStoreError creates a local storage error with operation context
func NewStoreError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStoreQuery, fmt.Sprintf("store %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Local storage operation failed")
}

// NewRemoteError creates an error for a remote document-store call.
// Whether the call is worth retrying on a later sync pass is decided here,
// from the HTTP status, rather than by every caller.
func NewRemoteError(operation, path string, statusCode int, err error) *AppError {
	retryable := statusCode == 0 || statusCode >= 500 || statusCode == 429 || statusCode == 408

	appErr := Wrap(err, ErrCodeRemoteStore, fmt.Sprintf("remote %s failed", operation)).
		WithContext("operation", operation).
		WithContext("path", path).
		WithContext("status_code", statusCode)

	if retryable {
		appErr.Retryable = true
	}

	return appErr
}

// NewIdentityError creates the error that aborts a whole sync pass: the
// authenticated owner profile could not be resolved.
func NewIdentityError(err error) *AppError {
	return WrapRetryable(err, ErrCodeIdentityUnresolved, "owner profile not resolved").
		WithUserMessage("Could not resolve your profile, sync will retry")
}

// NewTransportError creates a realtime transport error
func NewTransportError(topic string, err error) *AppError {
	return WrapRetryable(err, ErrCodeTransport, "realtime transport failure").
		WithContext("topic", topic)
}

// NewTimeoutError creates a timeout error with context
func NewTimeoutError(operation string, duration string) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", operation, duration)).
		WithContext("operation", operation).
		WithContext("timeout", duration).
		WithUserMessage("Operation timed out, please try again")
}
