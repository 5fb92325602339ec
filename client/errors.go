package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/distribution/webhdfs/client/transport"
)

var (
	// ErrNotFound matches errors reporting a missing path.
	ErrNotFound = errors.New("path not found")

	// ErrFalseResult is returned when an operation answered {"boolean":false}.
	ErrFalseResult = errors.New("operation returned a false boolean result")

	// ErrNotJSON is wrapped by a DecodeError when structured access is
	// requested on a body whose content type is not JSON.
	ErrNotJSON = errors.New("content type is not application/json")

	// ErrNoRemoteException is returned when an error response body parses
	// as JSON but does not describe a RemoteException.
	ErrNoRemoteException = errors.New("no RemoteException found in HTTP response body")
)

// ConnectionError is returned when no HTTP status was received.
type ConnectionError = transport.ConnectionError

// TransferError is returned when streaming through the redirect target
// failed after the service accepted the request.
type TransferError = transport.TransferError

// Exception names reported by the service.
const (
	// ExceptionIllegalArgument indicates 400 Bad Request
	ExceptionIllegalArgument = "IllegalArgumentException"

	// ExceptionUnsupportedOperation indicates 400 Bad Request
	ExceptionUnsupportedOperation = "UnsupportedOperationException"

	// ExceptionSecurity indicates 401 Unauthorized
	ExceptionSecurity = "SecurityException"

	// ExceptionIO indicates 403 Forbidden
	ExceptionIO = "IOException"

	// ExceptionAccessControl indicates 403 Forbidden
	ExceptionAccessControl = "AccessControlException"

	// ExceptionFileAlreadyExists indicates 403 Forbidden
	ExceptionFileAlreadyExists = "FileAlreadyExistsException"

	// ExceptionFileNotFound indicates 404 Not Found
	ExceptionFileNotFound = "FileNotFoundException"

	// ExceptionRuntime indicates 500 Internal Server Error
	ExceptionRuntime = "RuntimeException"
)

// RemoteException is the structured error body of a failed operation:
//
//	{
//	  "RemoteException":
//	  {
//	    "exception"    : "FileNotFoundException",
//	    "javaClassName": "java.io.FileNotFoundException",
//	    "message"      : "File does not exist: /foo/a.patch"
//	  }
//	}
type RemoteException struct {
	StatusCode    int    `json:"-"`
	Exception     string `json:"exception"`
	JavaClassName string `json:"javaClassName"`
	Message       string `json:"message"`
}

func (e *RemoteException) Error() string {
	return fmt.Sprintf("%s (HTTP %d): %s", e.Exception, e.StatusCode, e.Message)
}

// Is reports FileNotFoundException and 404 answers as ErrNotFound.
func (e *RemoteException) Is(target error) bool {
	return target == ErrNotFound && (e.Exception == ExceptionFileNotFound || e.StatusCode == http.StatusNotFound)
}

// UnexpectedHTTPStatusError is returned for an error status whose body
// carries no RemoteException.
type UnexpectedHTTPStatusError struct {
	Status     string
	StatusCode int
}

func (e *UnexpectedHTTPStatusError) Error() string {
	return fmt.Sprintf("received unexpected HTTP status: %s", e.Status)
}

// Is reports 404 answers as ErrNotFound.
func (e *UnexpectedHTTPStatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// UnexpectedHTTPResponseError is returned when a client error status is
// returned, but the content was unexpected and failed to be parsed.
type UnexpectedHTTPResponseError struct {
	ParseErr   error
	StatusCode int
	Response   []byte
}

func (e *UnexpectedHTTPResponseError) Error() string {
	return fmt.Sprintf("error parsing HTTP %d response body: %s: %q", e.StatusCode, e.ParseErr.Error(), string(e.Response))
}

func (e *UnexpectedHTTPResponseError) Unwrap() error { return e.ParseErr }

// Is reports 404 answers as ErrNotFound.
func (e *UnexpectedHTTPResponseError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// DecodeError is returned when structured access to a Response body fails.
type DecodeError struct {
	ContentType string
	Err         error
}

func (e *DecodeError) Error() string {
	if e.ContentType == "" {
		return fmt.Sprintf("decoding response body: %v", e.Err)
	}
	return fmt.Sprintf("decoding %s response body: %v", e.ContentType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// HandleHTTPResponseError returns the error described by resp, if any. It
// returns nil for statuses 200-399. A parseable RemoteException body yields
// a *RemoteException; otherwise client errors (400-499) yield an
// *UnexpectedHTTPResponseError and any other status an
// *UnexpectedHTTPStatusError.
func HandleHTTPResponseError(resp *Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 399 {
		return nil
	}

	statusLine := fmt.Sprintf("%d %s", resp.StatusCode, resp.Status)
	body := resp.body
	clientError := resp.StatusCode >= 400 && resp.StatusCode <= 499

	if len(body) == 0 {
		return &UnexpectedHTTPStatusError{Status: statusLine, StatusCode: resp.StatusCode}
	}

	if resp.ContentType != "" && !isJSON(resp.ContentType) {
		if clientError {
			return &UnexpectedHTTPResponseError{
				ParseErr:   &DecodeError{ContentType: resp.ContentType, Err: ErrNotJSON},
				StatusCode: resp.StatusCode,
				Response:   body,
			}
		}
		return &UnexpectedHTTPStatusError{Status: statusLine, StatusCode: resp.StatusCode}
	}

	var envelope struct {
		RemoteException *RemoteException `json:"RemoteException"`
	}
	err := json.Unmarshal(body, &envelope)
	if err == nil && (envelope.RemoteException == nil || envelope.RemoteException.Exception == "") {
		err = ErrNoRemoteException
	}
	if err != nil {
		if clientError {
			return &UnexpectedHTTPResponseError{
				ParseErr:   err,
				StatusCode: resp.StatusCode,
				Response:   body,
			}
		}
		return &UnexpectedHTTPStatusError{Status: statusLine, StatusCode: resp.StatusCode}
	}

	envelope.RemoteException.StatusCode = resp.StatusCode
	return envelope.RemoteException
}
