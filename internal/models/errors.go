package models

import (
	"fmt"
)

type ErrorKind string

const (
	ErrorKindTransport  ErrorKind = "transport"
	ErrorKindParse      ErrorKind = "parse"
	ErrorKindConfig     ErrorKind = "config"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindInternal   ErrorKind = "internal"
	ErrorKindExternal   ErrorKind = "external"
)

// AppError is the error type crossing service boundaries. Agent stages catch
// every AppError and convert it into a fallback response; none reach the user
// as a hard failure.
type AppError struct {
	Kind     ErrorKind              `json:"kind"`
	Code     string                 `json:"code"`
	Message  string                 `json:"message"`
	Cause    error                  `json:"-"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches AppErrors by code, so sentinel comparisons survive the clone in
// WithCause and WithMetadata.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func (e *AppError) WithCause(cause error) *AppError {
	clone := e.clone()
	clone.Cause = cause
	return clone
}

func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	clone := e.clone()
	if clone.Metadata == nil {
		clone.Metadata = make(map[string]interface{})
	}
	clone.Metadata[key] = value
	return clone
}

func (e *AppError) clone() *AppError {
	metadata := make(map[string]interface{}, len(e.Metadata))
	for k, v := range e.Metadata {
		metadata[k] = v
	}
	if len(metadata) == 0 {
		metadata = nil
	}
	return &AppError{
		Kind:     e.Kind,
		Code:     e.Code,
		Message:  e.Message,
		Cause:    e.Cause,
		Metadata: metadata,
	}
}

func newError(kind ErrorKind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func NewTransportError(code, message string) *AppError {
	return newError(ErrorKindTransport, code, message)
}

func NewParseError(code, message string) *AppError {
	return newError(ErrorKindParse, code, message)
}

func NewConfigError(code, message string) *AppError {
	return newError(ErrorKindConfig, code, message)
}

func NewTimeoutError(code, message string) *AppError {
	return newError(ErrorKindTimeout, code, message)
}

func NewValidationError(code, message string) *AppError {
	return newError(ErrorKindValidation, code, message)
}

func NewInternalError(code, message string) *AppError {
	return newError(ErrorKindInternal, code, message)
}

func NewExternalError(code, message string) *AppError {
	return newError(ErrorKindExternal, code, message)
}

// WrapExternalError annotates a failure from a named external collaborator.
func WrapExternalError(service string, err error) *AppError {
	return NewExternalError(service+"_FAILED", "external service call failed").WithCause(err)
}

var ErrRunNotFound = NewValidationError("RUN_NOT_FOUND", "pipeline run not found")

// KindOf reports the taxonomy kind of err, or empty when err is not an AppError.
func KindOf(err error) ErrorKind {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Kind
	}
	return ""
}
