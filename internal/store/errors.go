package store

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the store answers 401. The session has
// already been invalidated by the time a caller sees it.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden matches every *ForbiddenError.
var ErrForbidden = errors.New("forbidden")

// ForbiddenError is a 403: the credential is valid but does not cover the
// requested scope, such as a bidder not assigned to the developer. The session
// stays active and retrying will not help.
type ForbiddenError struct {
	Op      string
	Message string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s: forbidden: %s", e.Op, e.Message)
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// RequestError is any other non-2xx response.
type RequestError struct {
	Op      string
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

// DisguisedError is a 2xx archive response whose body is not an archive.
// Message holds the body decoded as text.
type DisguisedError struct {
	Op          string
	ContentType string
	Message     string
}

func (e *DisguisedError) Error() string {
	return fmt.Sprintf("%s: unexpected content type %q: %s", e.Op, e.ContentType, e.Message)
}

// TransportError means no usable response arrived.
type TransportError struct {
	Op    string
	URL   string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: request to %s failed: %v", e.Op, e.URL, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsUnauthorized reports whether err came from a 401.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden reports whether err came from a 403.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// Message returns the text to show a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var reqErr *RequestError
	var forbidden *ForbiddenError
	var disguised *DisguisedError
	var transport *TransportError
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "Session expired. Please sign in again."
	case errors.As(err, &forbidden):
		return forbidden.Message
	case errors.As(err, &reqErr):
		return reqErr.Message
	case errors.As(err, &disguised):
		return disguised.Message
	case errors.As(err, &transport):
		return "Network error. Please try again."
	default:
		return err.Error()
	}
}
