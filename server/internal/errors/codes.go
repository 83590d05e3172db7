package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific failure class of the assistant.
type ErrorCode string

const (
	// ErrCodeInvalidSession indicates an unknown session id. The user must start a new chat.
	ErrCodeInvalidSession ErrorCode = "INVALID_SESSION"
	// ErrCodeBackendUnavailable indicates the medication fetch failed.
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	// ErrCodeSecondaryFetchFailed indicates a supplier or user fetch failed.
	ErrCodeSecondaryFetchFailed ErrorCode = "SECONDARY_FETCH_FAILED"
	// ErrCodeGenerationFailed indicates the language model call failed.
	ErrCodeGenerationFailed ErrorCode = "GENERATION_FAILED"
	// ErrCodeDeliveryFailed indicates an email or upload failed.
	ErrCodeDeliveryFailed ErrorCode = "DELIVERY_FAILED"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// AppError represents a structured error crossing a service boundary.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// LogAttrs flattens the error into slog key/value pairs.
func (e *AppError) LogAttrs() []any {
	attrs := []any{"code", string(e.Code), "error", e.Error()}
	for k, v := range e.Context {
		attrs = append(attrs, k, v)
	}
	return attrs
}

// InvalidSession creates an invalid session error.
func InvalidSession(sessionID string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidSession,
		Message: "sesión no válida. Inicia un nuevo chat",
		Context: map[string]interface{}{"session_id": sessionID},
	}
}

// BackendUnavailable creates a backend unavailable error.
func BackendUnavailable(cause error) *AppError {
	return &AppError{Code: ErrCodeBackendUnavailable, Message: "inventory backend unavailable", Cause: cause}
}

// SecondaryFetchFailed creates a scoped fetch error for a collection.
func SecondaryFetchFailed(collection string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeSecondaryFetchFailed,
		Message: fmt.Sprintf("failed to fetch %s", collection),
		Cause:   cause,
		Context: map[string]interface{}{"collection": collection},
	}
}

// GenerationFailed creates a language model error.
func GenerationFailed(cause error) *AppError {
	return &AppError{Code: ErrCodeGenerationFailed, Message: "description generation failed", Cause: cause}
}

// DeliveryFailed creates an email or upload error.
func DeliveryFailed(channel string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeDeliveryFailed,
		Message: fmt.Sprintf("%s delivery failed", channel),
		Cause:   cause,
		Context: map[string]interface{}{"channel": channel},
	}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *AppError {
	return &AppError{Code: ErrCodeInvalidArgument, Message: msg}
}

// IsCode checks if any error in the chain is an AppError with the code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsInvalidSession reports whether err is an invalid session error.
func IsInvalidSession(err error) bool {
	return IsCode(err, ErrCodeInvalidSession)
}

// IsBackendUnavailable reports whether err is a backend unavailable error.
func IsBackendUnavailable(err error) bool {
	return IsCode(err, ErrCodeBackendUnavailable)
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an AppError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return defaultCode
}
