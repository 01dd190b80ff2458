// Package upstream holds the boundary types shared by the clients of the
// backend services: the response envelope and the error they report.
package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies how a call to a backend service failed.
type Kind string

const (
	// KindRejected means the service answered, but with an error envelope or
	// a non-2xx status.
	KindRejected Kind = "rejected"

	// KindUnavailable means no HTTP response was received: connection
	// refused, DNS failure, timeout or cancellation.
	KindUnavailable Kind = "unavailable"

	// KindMalformed means the service answered 2xx with a body that is not a
	// valid envelope.
	KindMalformed Kind = "malformed"
)

// Error codes set by the clients when the service does not provide one.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeUnknown     = "UNKNOWN_ERROR"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
	CodeMalformed   = "MALFORMED_RESPONSE"
)

// Error is the failure side of every backend call.
type Error struct {
	Service string // "profile", "whatsapp"
	Kind    Kind
	Status  int    // HTTP status, 0 when there was no response
	Code    string // service error code or one of the Code* fallbacks
	Message string
	Err     error // transport or decode error, if any
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (%d %s): %s", e.Service, e.Kind, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s): %s", e.Service, e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HasResponse reports whether the service produced an HTTP response.
func (e *Error) HasResponse() bool {
	return e.Status != 0
}

// IsValidation reports whether the service rejected the submitted data.
// A 5xx is never a validation error, whatever code it carries.
func (e *Error) IsValidation() bool {
	return e.Kind == KindRejected &&
		e.Code == CodeValidation &&
		e.Status < http.StatusInternalServerError
}

// IsServer reports whether the service answered with a failure that is not
// a validation error.
func (e *Error) IsServer() bool {
	return e.Kind == KindRejected && !e.IsValidation()
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
