package transport

import (
	"io"
	"net/http"
	"net/url"

	"github.com/opencontainers/go-digest"
)

// Descriptor is a fully resolved request, independent of authentication
// state. A Descriptor is consumed by a single Execute call.
type Descriptor struct {
	// Op names the operation for logging and metrics, e.g. "CREATE".
	Op string

	// Method is the HTTP verb used for both phases.
	Method string

	// Path is the percent-encoded request path, relative to the executor's
	// base URL.
	Path string

	// Query holds the query parameters, including op.
	Query url.Values

	// TwoPhase marks operations whose payload moves through a redirect
	// target. A 307 answer to the first request is followed exactly once.
	TwoPhase bool

	// Body is streamed to the redirect target of a two-phase request. It is
	// closed by Execute.
	Body BodySource

	// Sink receives the final response body of a successful download. When
	// set, RawResult.Body stays empty.
	Sink io.Writer
}

// RawResult is the outcome of the final physical round trip of a request.
type RawResult struct {
	StatusCode int

	// Status is the reason phrase, e.g. "Created".
	Status string

	// ContentType is the Content-Type header value, empty when absent.
	ContentType string

	Header http.Header
	Body   []byte

	// Location is the redirect target followed by a two-phase request.
	Location string

	// Transferred counts the bytes streamed to the redirect target or into
	// the sink.
	Transferred int64

	// Digest is the sha256 digest of the streamed bytes. It is empty when
	// nothing was streamed.
	Digest digest.Digest
}
