package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// ErrorKindInvalidInput is the only kind that aborts a workflow; it is
	// raised before PLANNED and surfaced to the caller as a rejection.
	ErrorKindInvalidInput ErrorKind = "invalid_input"
	// ErrorKindExternal marks an unavailable external capability. Call
	// sites must degrade to their documented fallback, never abort.
	ErrorKindExternal  ErrorKind = "external"
	ErrorKindTimeout   ErrorKind = "timeout"
	ErrorKindInternal  ErrorKind = "internal"
	ErrorKindNotFound  ErrorKind = "not_found"
	ErrorKindCancelled ErrorKind = "cancelled"
)

type PipelineError struct {
	Kind     ErrorKind
	Code     string
	Message  string
	Cause    error
	Metadata map[string]interface{}
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy carrying the underlying error, leaving shared
// sentinel errors untouched.
func (e *PipelineError) WithCause(cause error) *PipelineError {
	copied := *e
	copied.Cause = cause
	return &copied
}

func (e *PipelineError) WithMetadata(key string, value interface{}) *PipelineError {
	copied := *e
	copied.Metadata = make(map[string]interface{}, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		copied.Metadata[k] = v
	}
	copied.Metadata[key] = value
	return &copied
}

func newError(kind ErrorKind, code, message string) *PipelineError {
	return &PipelineError{Kind: kind, Code: code, Message: message}
}

func NewInvalidInputError(code, message string) *PipelineError {
	return newError(ErrorKindInvalidInput, code, message)
}

func NewExternalError(code, message string) *PipelineError {
	return newError(ErrorKindExternal, code, message)
}

func NewTimeoutError(code, message string) *PipelineError {
	return newError(ErrorKindTimeout, code, message)
}

func NewInternalError(code, message string) *PipelineError {
	return newError(ErrorKindInternal, code, message)
}

func NewNotFoundError(code, message string) *PipelineError {
	return newError(ErrorKindNotFound, code, message)
}

func NewCancelledError(code, message string) *PipelineError {
	return newError(ErrorKindCancelled, code, message)
}

// WrapExternalError tags an arbitrary capability failure with its service
// name so fallback decisions can log a stable code.
func WrapExternalError(service string, cause error) *PipelineError {
	return NewExternalError(service+"_UNAVAILABLE", "external capability call failed").WithCause(cause)
}

var ErrSessionNotFound = NewNotFoundError("SESSION_NOT_FOUND", "analysis session not found")

// KindOf extracts the error kind, defaulting to internal for errors that
// did not originate in this module.
func KindOf(err error) ErrorKind {
	var pipelineErr *PipelineError
	if errors.As(err, &pipelineErr) {
		return pipelineErr.Kind
	}
	return ErrorKindInternal
}

func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrorKindInvalidInput
}

func IsNotFound(err error) bool {
	return KindOf(err) == ErrorKindNotFound
}
