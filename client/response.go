package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"sync"

	"github.com/distribution/webhdfs/client/transport"
	"github.com/opencontainers/go-digest"
)

// Response is the outcome of an operation. Error statuses are ordinary
// responses; use Err to map them.
type Response struct {
	StatusCode int

	// Status is the reason phrase, e.g. "Forbidden".
	Status string

	// ContentType is empty when the service sent none.
	ContentType string

	Header http.Header

	// Location is the redirect target of a two-phase operation.
	Location string

	// Transferred and Digest describe the bytes streamed through the
	// redirect target or into a download sink.
	Transferred int64
	Digest      digest.Digest

	body []byte

	once  sync.Once
	value interface{}
	err   error
}

// Translate wraps raw as a Response. The body is not parsed until
// structured access is requested.
func Translate(raw *transport.RawResult) *Response {
	header := raw.Header
	if header == nil {
		header = http.Header{}
	}
	return &Response{
		StatusCode:  raw.StatusCode,
		Status:      raw.Status,
		ContentType: raw.ContentType,
		Header:      header,
		Location:    raw.Location,
		Transferred: raw.Transferred,
		Digest:      raw.Digest,
		body:        raw.Body,
	}
}

// Raw returns the body as text.
func (r *Response) Raw() string {
	return string(r.body)
}

// Bytes returns a copy of the body.
func (r *Response) Bytes() []byte {
	return append([]byte(nil), r.body...)
}

// Success reports a 2xx status.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// IsJSON reports whether the content type names the JSON media type.
// Parameters such as charset are ignored.
func (r *Response) IsJSON() bool {
	return isJSON(r.ContentType)
}

// JSON returns the body decoded into generic values, with numbers kept as
// json.Number. The result is computed once. It fails with a *DecodeError
// when a content type other than JSON was sent; with no content type the
// body is parsed anyway.
func (r *Response) JSON() (interface{}, error) {
	r.once.Do(func() {
		if err := r.checkContentType(); err != nil {
			r.err = err
			return
		}

		dec := json.NewDecoder(bytes.NewReader(r.body))
		dec.UseNumber()

		var v interface{}
		if err := dec.Decode(&v); err != nil {
			r.err = &DecodeError{ContentType: r.ContentType, Err: err}
			return
		}
		if _, err := dec.Token(); err != io.EOF {
			r.err = &DecodeError{ContentType: r.ContentType, Err: errors.New("trailing data after JSON value")}
			return
		}
		r.value = v
	})
	return r.value, r.err
}

// Decode unmarshals the body into v under the same content type rules as
// JSON.
func (r *Response) Decode(v interface{}) error {
	if err := r.checkContentType(); err != nil {
		return err
	}
	if err := json.Unmarshal(r.body, v); err != nil {
		return &DecodeError{ContentType: r.ContentType, Err: err}
	}
	return nil
}

// Err maps an error status to a typed error. It returns nil for 2xx and 3xx.
func (r *Response) Err() error {
	return HandleHTTPResponseError(r)
}

func (r *Response) checkContentType() error {
	if r.ContentType != "" && !isJSON(r.ContentType) {
		return &DecodeError{ContentType: r.ContentType, Err: ErrNotJSON}
	}
	return nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
