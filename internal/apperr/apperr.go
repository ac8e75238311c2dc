// Package apperr defines the typed error taxonomy shared by the pipeline and
// the query service. Every boundary (HTTP handlers, orchestrator summaries)
// converts failures into one of these codes rather than leaking raw errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is one of the fixed error classes a caller can branch on.
type Code string

const (
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeNotFound             Code = "NOT_FOUND"
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeForbidden            Code = "FORBIDDEN"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeExtractionParseError Code = "EXTRACTION_PARSE_ERROR"
	CodeUnsupportedType      Code = "UNSUPPORTED_EXTRACTION_TYPE"
	CodeAuthError            Code = "AUTH_ERROR"
	CodeBadRequest           Code = "BAD_REQUEST"
	CodeAPIError             Code = "API_ERROR"
	CodeStorageError         Code = "STORAGE_ERROR"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// Error is the typed error carried across package boundaries. Details is
// optional structured context surfaced verbatim in the HTTP error envelope.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a typed error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithDetails returns a copy of e carrying the given detail map.
func (e *Error) WithDetails(details map[string]any) *Error {
	out := *e
	out.Details = details
	return &out
}

// As extracts an *Error from err, if present anywhere in its chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// HTTPStatus maps a Code to the status the query service returns for it.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeAuthError:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
