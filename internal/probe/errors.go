package probe

import (
	"errors"
	"fmt"
)

// ErrTransport is returned when a request could not be completed at the
// transport level: DNS failure, connection refused, timeout or a broken
// response body.
var ErrTransport = errors.New("transport failure")

// ErrInvalidURL is returned when a request cannot be built from the URL.
var ErrInvalidURL = errors.New("invalid request url")

// StatusError reports a response whose status code was not acceptable
// to the caller.
type StatusError struct {
	// URL is the requested URL.
	URL string
	// StatusCode is the HTTP status code returned by the server.
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}
