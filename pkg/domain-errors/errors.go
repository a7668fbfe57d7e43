// Package derrors defines the domain error vocabulary shared by services and
// the HTTP layer. Services return these for validation and business failures;
// infrastructure facts use pkg/platform/sentinel instead.
package derrors

import "errors"

// Code classifies a domain error for HTTP translation.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUpstream     Code = "upstream_error"
	CodeInternal     Code = "internal"
)

// DomainError carries a classification code plus a message safe to show the
// caller verbatim.
type DomainError struct {
	Code    Code
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// New builds a DomainError with the given code and caller-visible message.
func New(code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Is reports whether err is a DomainError with the given code.
func Is(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return 400
	case CodeUnauthorized:
		return 401
	case CodeForbidden:
		return 403
	case CodeNotFound:
		return 404
	case CodeConflict:
		return 409
	case CodeUpstream:
		return 400
	default:
		return 500
	}
}
