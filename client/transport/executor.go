package transport

import (
	"bytes"
	"context"
	_ "crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/distribution/webhdfs/client/auth"
	"github.com/distribution/webhdfs/internal/dcontext"
	"github.com/distribution/webhdfs/metrics"
	"github.com/distribution/webhdfs/version"
	"github.com/opencontainers/go-digest"
)

const (
	// DefaultChunkSize is the size of each piece handed to the connection
	// while streaming a body.
	DefaultChunkSize = 12288

	// DefaultConnectTimeout bounds establishing a connection.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultReadTimeout bounds waiting for the response headers after the
	// request was written, and each read of the response body.
	DefaultReadTimeout = 60 * time.Second
)

const (
	phaseSingle   = "single"
	phaseInitiate = "initiate"
	phaseRedirect = "redirect"
)

// Config configures an Executor.
type Config struct {
	// BaseURL is the service root, e.g. http://namenode:9870.
	BaseURL *url.URL

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// ChunkSize is the streaming piece size in bytes.
	ChunkSize int

	UserAgent string

	// Transport replaces the default transport built from the timeouts.
	Transport http.RoundTripper
}

// Executor performs resolved requests against the service, following the
// redirect of two-phase operations itself.
type Executor struct {
	base        *url.URL
	client      *http.Client
	chunkSize   int
	readTimeout time.Duration
	userAgent   string
}

// New returns an Executor for cfg. Zero timeouts and chunk size take their
// defaults.
func New(cfg Config) (*Executor, error) {
	if cfg.BaseURL == nil {
		return nil, errors.New("transport: base URL is required")
	}
	if cfg.BaseURL.Scheme != "http" && cfg.BaseURL.Scheme != "https" {
		return nil, fmt.Errorf("transport: unsupported scheme %q", cfg.BaseURL.Scheme)
	}
	if cfg.ChunkSize < 0 {
		return nil, fmt.Errorf("transport: invalid chunk size %d", cfg.ChunkSize)
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = version.UserAgent()
	}

	rt := cfg.Transport
	if rt == nil {
		rt = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   cfg.ConnectTimeout,
			ResponseHeaderTimeout: cfg.ReadTimeout,
			ExpectContinueTimeout: time.Second,
			MaxIdleConnsPerHost:   8,
			IdleConnTimeout:       90 * time.Second,
		}
	}

	base := *cfg.BaseURL
	return &Executor{
		base: &base,
		client: &http.Client{
			Transport: rt,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		chunkSize:   cfg.ChunkSize,
		readTimeout: cfg.ReadTimeout,
		userAgent:   cfg.UserAgent,
	}, nil
}

// BaseURL returns a copy of the service root.
func (e *Executor) BaseURL() *url.URL {
	u := *e.base
	return &u
}

// HTTPClient returns the client used for every round trip. It never follows
// redirects.
func (e *Executor) HTTPClient() *http.Client {
	return e.client
}

// Execute runs d with token attached to the first request. Only failures
// that leave no HTTP outcome to report are returned as errors: a
// *ConnectionError or a *TransferError. Any status, including 4xx and 5xx,
// is a result.
func (e *Executor) Execute(ctx context.Context, token *auth.Token, d *Descriptor) (*RawResult, error) {
	if d.Body != nil {
		d.Body = &closeOnce{BodySource: d.Body}
		defer d.Body.Close()
	}

	target := e.resolve(d)
	if d.TwoPhase {
		return e.executeTwoPhase(ctx, token, d, target)
	}
	return e.executeSingle(ctx, token, d, target)
}

func (e *Executor) resolve(d *Descriptor) *url.URL {
	u := *e.base
	u.RawPath = strings.TrimSuffix(e.base.EscapedPath(), "/") + d.Path
	if p, err := url.PathUnescape(u.RawPath); err == nil {
		u.Path = p
	} else {
		u.Path = u.RawPath
	}
	u.RawQuery = d.Query.Encode()
	u.Fragment = ""
	return &u
}

func (e *Executor) executeSingle(ctx context.Context, token *auth.Token, d *Descriptor, target *url.URL) (*RawResult, error) {
	resp, err := e.roundTrip(ctx, d, phaseSingle, target.String(), token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	result, err := e.readResult(ctx, d, resp)
	if err != nil {
		return nil, e.transferFailure(d, target.String(), resp, result, err)
	}
	return result, nil
}

func (e *Executor) executeTwoPhase(ctx context.Context, token *auth.Token, d *Descriptor, target *url.URL) (*RawResult, error) {
	resp, err := e.roundTrip(ctx, d, phaseInitiate, target.String(), token, nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusTemporaryRedirect {
		// the service answered without redirecting, typically an error
		defer resp.Body.Close()
		result, err := e.readResult(ctx, d, resp)
		if err != nil {
			return nil, e.transferFailure(d, target.String(), resp, result, err)
		}
		return result, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	location, err := resp.Location()
	if err != nil {
		return nil, e.transferFailure(d, target.String(), resp, nil, fmt.Errorf("%w: %v", ErrNoLocation, err))
	}

	var upload *streamReader
	if d.Body != nil {
		src, err := sizedBody(d.Body)
		if err != nil {
			return nil, e.transferFailure(d, location.String(), nil, nil, err)
		}
		upload = newStreamReader(src, e.chunkSize)
	}

	// the redirect target trusts the initiating exchange; no token here
	resp, err = e.roundTrip(ctx, d, phaseRedirect, location.String(), nil, upload)
	if err != nil {
		var n int64
		if upload != nil {
			n = upload.n
			if upload.err != nil {
				err = upload.err
			}
		}
		metrics.Failures.WithValues("transfer").Inc(1)
		return nil, &TransferError{
			Op:          d.Op,
			Method:      d.Method,
			URL:         location.String(),
			Transferred: n,
			Err:         err,
		}
	}
	defer resp.Body.Close()

	result, err := e.readResult(ctx, d, resp)
	if upload != nil {
		metrics.TransferredBytes.WithValues("upload").Inc(float64(upload.n))
		if result != nil {
			result.Transferred = upload.n
			result.Digest = upload.digest()
		}
	}
	if err != nil {
		return nil, e.transferFailure(d, location.String(), resp, result, err)
	}
	result.Location = location.String()
	return result, nil
}

// roundTrip performs one physical request. A nil token sends no
// credentials.
func (e *Executor) roundTrip(ctx context.Context, d *Descriptor, phase, target string, token *auth.Token, upload *streamReader) (*http.Response, error) {
	var reqBody io.Reader
	if upload != nil && upload.size > 0 {
		reqBody = upload
	}

	// cancelled when the body is closed or a body read stalls
	ctx, cancel := context.WithCancelCause(ctx)

	req, err := http.NewRequestWithContext(ctx, d.Method, target, reqBody)
	if err != nil {
		cancel(nil)
		return nil, &ConnectionError{Op: d.Op, Method: d.Method, URL: target, Err: err}
	}
	if upload != nil {
		req.ContentLength = upload.size
		if upload.size == 0 {
			req.Body = http.NoBody
		}
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	req.Header.Set("User-Agent", e.userAgent)
	if token != nil {
		token.SetHeaders(req)
	}

	logger := dcontext.GetLoggerWithFields(ctx, map[interface{}]interface{}{
		"webhdfs.op":          d.Op,
		"webhdfs.phase":       phase,
		"http.request.method": d.Method,
		"http.request.url":    redact(req.URL),
	})

	start := time.Now()
	metrics.Requests.WithValues(d.Method, phase).Inc(1)
	resp, err := e.client.Do(req)
	metrics.RequestDuration.WithValues(phase).UpdateSince(start)
	if err != nil {
		cancel(nil)
		logger.WithError(err).Debug("round trip failed")
		if phase != phaseRedirect {
			metrics.Failures.WithValues("connection").Inc(1)
			return nil, &ConnectionError{Op: d.Op, Method: d.Method, URL: target, Err: err}
		}
		return nil, err
	}

	logger.WithField("http.response.status", resp.StatusCode).
		WithField("http.response.duration", time.Since(start)).
		Debug("round trip complete")
	resp.Body = newIdleTimeoutBody(resp.Body, e.readTimeout, cancel)
	return resp, nil
}

// readResult captures the response line and body. Successful responses of
// a descriptor with a sink are streamed into it; everything else is read
// eagerly. On a read failure the partial result is returned with the error.
func (e *Executor) readResult(ctx context.Context, d *Descriptor, resp *http.Response) (*RawResult, error) {
	result := &RawResult{
		StatusCode:  resp.StatusCode,
		Status:      reasonPhrase(resp),
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
	}

	if d.Sink != nil && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		digester := digest.Canonical.Digester()
		n, err := io.CopyBuffer(io.MultiWriter(d.Sink, digester.Hash()), struct{ io.Reader }{resp.Body}, make([]byte, e.chunkSize))
		result.Transferred = n
		metrics.TransferredBytes.WithValues("download").Inc(float64(n))
		if err != nil {
			return result, err
		}
		result.Digest = digester.Digest()
		return result, nil
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return result, err
	}
	result.Body = buf.Bytes()
	return result, nil
}

func (e *Executor) transferFailure(d *Descriptor, target string, resp *http.Response, result *RawResult, err error) error {
	metrics.Failures.WithValues("transfer").Inc(1)
	terr := &TransferError{
		Op:     d.Op,
		Method: d.Method,
		URL:    target,
		Err:    err,
	}
	if resp != nil {
		terr.StatusCode = resp.StatusCode
		terr.Status = reasonPhrase(resp)
	}
	if result != nil {
		terr.Transferred = result.Transferred
	}
	return terr
}

// streamReader hands the body to the connection in chunks of at most
// chunkSize bytes, counting and digesting what it yields.
type streamReader struct {
	src   BodySource
	size  int64
	chunk int
	n     int64
	hash  hash.Hash
	dgst  digest.Digester
	err   error
}

func newStreamReader(src BodySource, chunk int) *streamReader {
	dgst := digest.Canonical.Digester()
	return &streamReader{
		src:   src,
		size:  src.Size(),
		chunk: chunk,
		hash:  dgst.Hash(),
		dgst:  dgst,
	}
}

func (s *streamReader) Read(p []byte) (int, error) {
	if len(p) > s.chunk {
		p = p[:s.chunk]
	}
	n, err := s.src.Read(p)
	if n > 0 {
		s.n += int64(n)
		s.hash.Write(p[:n])
	}
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

func (s *streamReader) Close() error {
	return s.src.Close()
}

func (s *streamReader) digest() digest.Digest {
	if s.n == 0 {
		return ""
	}
	return s.dgst.Digest()
}

func reasonPhrase(resp *http.Response) string {
	if reason, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)); ok {
		if reason = strings.TrimSpace(reason); reason != "" {
			return reason
		}
	}
	return http.StatusText(resp.StatusCode)
}

// redact hides query parameters that carry delegation tokens.
func redact(u *url.URL) string {
	q := u.Query()
	if q.Get("delegation") == "" {
		return u.Redacted()
	}
	q.Set("delegation", "xxxxx")
	c := *u
	c.RawQuery = q.Encode()
	return c.Redacted()
}
