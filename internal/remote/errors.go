package remote

import (
	"errors"
	"fmt"
)

// ErrNotRegistered is returned by calls that need a server credential when
// registration has not succeeded yet.
var ErrNotRegistered = errors.New("server is not registered")

// Error is a failed call to the storefront: a transport error, a non-2xx
// response, a body that does not decode, or a response with success=false.
type Error struct {
	// Op names the call ("fetch", "acknowledge", ...).
	Op string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Message is the storefront's message, or a description of what was
	// wrong with the response.
	Message string

	// Err is the underlying transport or decoding error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("remote %s: HTTP %d: %s: %v", e.Op, e.StatusCode, e.Message, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("remote %s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Message, e.Err)
	default:
		return fmt.Sprintf("remote %s: %s", e.Op, e.Message)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCodeOf returns the HTTP status carried by err, or 0.
func StatusCodeOf(err error) int {
	var re *Error
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
