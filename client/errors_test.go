package client

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHTTPResponseErrorSuccess(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusCreated, http.StatusTemporaryRedirect} {
		assert.NoError(t, HandleHTTPResponseError(newResponse(code, "", "")))
	}
}

func TestHandleHTTPResponseErrorRemoteException(t *testing.T) {
	json := `{"RemoteException":{"exception":"FileNotFoundException","javaClassName":"java.io.FileNotFoundException","message":"File does not exist: /foo/a.patch"}}`
	err := HandleHTTPResponseError(newResponse(http.StatusNotFound, "application/json", json))

	var re *RemoteException
	require.True(t, errors.As(err, &re))
	assert.Equal(t, ExceptionFileNotFound, re.Exception)
	assert.Equal(t, "java.io.FileNotFoundException", re.JavaClassName)
	assert.Equal(t, "File does not exist: /foo/a.patch", re.Message)
	assert.Equal(t, http.StatusNotFound, re.StatusCode)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "FileNotFoundException (HTTP 404): File does not exist: /foo/a.patch", err.Error())
}

func TestHandleHTTPResponseErrorOverwriteConflict(t *testing.T) {
	json := `{"RemoteException":{"exception":"FileAlreadyExistsException","javaClassName":"org.apache.hadoop.fs.FileAlreadyExistsException","message":"/tmp/x already exists"}}`
	err := HandleHTTPResponseError(newResponse(http.StatusForbidden, "application/json", json))

	var re *RemoteException
	require.True(t, errors.As(err, &re))
	assert.Equal(t, ExceptionFileAlreadyExists, re.Exception)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestHandleHTTPResponseErrorServerRemoteException(t *testing.T) {
	json := `{"RemoteException":{"exception":"RuntimeException","javaClassName":"java.lang.RuntimeException","message":"boom"}}`
	err := HandleHTTPResponseError(newResponse(http.StatusInternalServerError, "application/json", json))

	var re *RemoteException
	require.True(t, errors.As(err, &re))
	assert.Equal(t, ExceptionRuntime, re.Exception)
}

func TestHandleHTTPResponseErrorUnparseable(t *testing.T) {
	err := HandleHTTPResponseError(newResponse(http.StatusBadRequest, "application/json", `{"error":`))

	var uerr *UnexpectedHTTPResponseError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, http.StatusBadRequest, uerr.StatusCode)
	assert.Equal(t, `{"error":`, string(uerr.Response))
	assert.True(t, strings.HasPrefix(err.Error(), "error parsing HTTP 400 response body: "))
}

func TestHandleHTTPResponseErrorNoRemoteException(t *testing.T) {
	err := HandleHTTPResponseError(newResponse(http.StatusNotFound, "", `{"message":"gone"}`))

	var uerr *UnexpectedHTTPResponseError
	require.True(t, errors.As(err, &uerr))
	assert.ErrorIs(t, err, ErrNoRemoteException)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHandleHTTPResponseErrorHTMLBody(t *testing.T) {
	err := HandleHTTPResponseError(newResponse(http.StatusUnauthorized, "text/html; charset=iso-8859-1", "<html>Authentication required</html>"))

	var uerr *UnexpectedHTTPResponseError
	require.True(t, errors.As(err, &uerr))
	assert.ErrorIs(t, err, ErrNotJSON)
	assert.Equal(t, http.StatusUnauthorized, uerr.StatusCode)
}

func TestHandleHTTPResponseErrorUnexpectedStatus(t *testing.T) {
	err := HandleHTTPResponseError(newResponse(http.StatusBadGateway, "text/html", "<html>bad gateway</html>"))

	var serr *UnexpectedHTTPStatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "received unexpected HTTP status: 502 Bad Gateway", err.Error())

	err = HandleHTTPResponseError(newResponse(http.StatusNotFound, "application/json", ""))
	require.True(t, errors.As(err, &serr))
	assert.ErrorIs(t, err, ErrNotFound)
}
