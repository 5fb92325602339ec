package transport

import (
	"errors"
	"fmt"
)

// ErrNoLocation is returned when a two-phase request is redirected without a
// usable Location header.
var ErrNoLocation = errors.New("redirect without Location header")

// ErrReadTimeout is returned when no response body bytes arrived within the
// read timeout.
var ErrReadTimeout = errors.New("read timeout waiting for response body")

// ConnectionError is returned when no HTTP status was received for a
// request: DNS failures, refused or reset connections, timeouts.
type ConnectionError struct {
	Op     string
	Method string
	URL    string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s %s: connection failed: %v", e.Op, e.Method, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransferError is returned when the first phase of a request succeeded but
// streaming the payload or reading the final response failed. StatusCode
// and Status carry the final response line when one was received.
type TransferError struct {
	Op          string
	Method      string
	URL         string
	StatusCode  int
	Status      string
	Transferred int64
	Err         error
}

func (e *TransferError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s %s: transfer failed after %d bytes (HTTP %d %s): %v",
			e.Op, e.Method, e.URL, e.Transferred, e.StatusCode, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s %s: transfer failed after %d bytes: %v", e.Op, e.Method, e.URL, e.Transferred, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
