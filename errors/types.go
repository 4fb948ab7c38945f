package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// Store directory errors
	ErrCodeInvalidStoreName ErrorCode = "INVALID_STORE_NAME"
	ErrCodeCreateFailed     ErrorCode = "STORE_CREATE_FAILED"
	ErrCodeRefreshFailed    ErrorCode = "DIRECTORY_REFRESH_FAILED"

	// Log stream errors
	ErrCodeStreamFailed ErrorCode = "STREAM_FAILED"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// StorefrontError represents a structured error with context
type StorefrontError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *StorefrontError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *StorefrontError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *StorefrontError) WithDetail(key string, value interface{}) *StorefrontError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *StorefrontError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new StorefrontError
func New(code ErrorCode, message string) *StorefrontError {
	return &StorefrontError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a StorefrontError
func Wrap(err error, code ErrorCode, message string) *StorefrontError {
	return &StorefrontError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific StorefrontError code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	sfErr, ok := err.(*StorefrontError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return sfErr.Code
}
