// Package errors provides coded domain errors for the postsmith service.
//
// Services return *Error values; the API layer turns the Code into an HTTP
// status and a JSON body. Messages are shown to the user as-is, so most are
// Japanese:
//
//	if key == "" {
//	    return errors.MissingCredential("APIキーを設定してください")
//	}
//
//	if errors.Is(err, errors.ErrBusy) {
//	    // another generation holds the workspace
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-exported so callers need a single errors import.
var (
	Is = errors.Is
	As = errors.As
)

// Code is a machine-readable error code.
type Code string

const (
	CodeNotFound               Code = "NOT_FOUND"
	CodeValidation             Code = "VALIDATION"
	CodeConflict               Code = "CONFLICT"
	CodeInternal               Code = "INTERNAL"
	CodeBusy                   Code = "BUSY"
	CodeMissingCredential      Code = "MISSING_CREDENTIAL"
	CodeGenerationFailed       Code = "GENERATION_FAILED"
	CodeNoOutputExtracted      Code = "NO_OUTPUT_EXTRACTED"
	CodePersistenceUnavailable Code = "PERSISTENCE_UNAVAILABLE"
)

type codeInfo struct {
	status    int
	retryable bool
}

var codes = map[Code]codeInfo{
	CodeNotFound:               {status: http.StatusNotFound},
	CodeValidation:             {status: http.StatusBadRequest},
	CodeMissingCredential:      {status: http.StatusBadRequest},
	CodeConflict:               {status: http.StatusConflict},
	CodeBusy:                   {status: http.StatusConflict, retryable: true},
	CodeGenerationFailed:       {status: http.StatusBadGateway, retryable: true},
	CodeNoOutputExtracted:      {status: http.StatusBadGateway, retryable: true},
	CodePersistenceUnavailable: {status: http.StatusServiceUnavailable, retryable: true},
	CodeInternal:               {status: http.StatusInternalServerError},
}

// HTTPStatus maps the code to a response status. Unknown codes are 500.
func (c Code) HTTPStatus() int {
	if info, ok := codes[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Retryable reports whether the same request may succeed if sent again unchanged.
func (c Code) Retryable() bool {
	return codes[c].retryable
}

// Error is a domain error with a code, a user-facing message and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same Code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// HTTPStatus returns the status for e.Code.
func (e *Error) HTTPStatus() int { return e.Code.HTTPStatus() }

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.cause = err
	return &c
}

// Sentinels for errors.Is.
var (
	ErrNotFound               = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation             = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict               = &Error{Code: CodeConflict, Message: "conflict"}
	ErrBusy                   = &Error{Code: CodeBusy, Message: "a generation is already in progress"}
	ErrMissingCredential      = &Error{Code: CodeMissingCredential, Message: "missing credential"}
	ErrGenerationFailed       = &Error{Code: CodeGenerationFailed, Message: "generation failed"}
	ErrNoOutputExtracted      = &Error{Code: CodeNoOutputExtracted, Message: "no output extracted"}
	ErrPersistenceUnavailable = &Error{Code: CodePersistenceUnavailable, Message: "persistence unavailable"}
)

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error { return newError(CodeNotFound, msg) }

// NotFoundf creates a not found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return newError(CodeNotFound, fmt.Sprintf(format, args...))
}

// Validation creates a validation error.
func Validation(msg string) *Error { return newError(CodeValidation, msg) }

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return newError(CodeValidation, fmt.Sprintf(format, args...))
}

// ValidationWithDetails creates a validation error with per-field details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

func Conflict(msg string) *Error { return newError(CodeConflict, msg) }

func Busy(msg string) *Error { return newError(CodeBusy, msg) }

func MissingCredential(msg string) *Error { return newError(CodeMissingCredential, msg) }

// GenerationFailed keeps the upstream failure as the cause; only msg reaches the user.
func GenerationFailed(msg string, cause error) *Error {
	return &Error{Code: CodeGenerationFailed, Message: msg, cause: cause}
}

func NoOutputExtracted(msg string) *Error { return newError(CodeNoOutputExtracted, msg) }

// PersistenceUnavailable wraps a storage failure.
func PersistenceUnavailable(cause error) *Error {
	return &Error{Code: CodePersistenceUnavailable, Message: "record storage is unavailable", cause: cause}
}

// Wrap attaches a code and message to err.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}
