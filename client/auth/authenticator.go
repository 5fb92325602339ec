package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ProbePath is the side-effect free operation every authenticator issues to
// obtain or validate a token.
const ProbePath = "/webhdfs/v1/"

// ProbeOp is the operation name sent with the probe.
const ProbeOp = "GETHOMEDIRECTORY"

// ErrNoAuthCookie is returned when the probe succeeded but the service did
// not issue a hadoop.auth cookie.
var ErrNoAuthCookie = errors.New("service did not issue a hadoop.auth cookie")

// Credentials identify the principal a token is requested for.
type Credentials struct {
	// Principal is the user or Kerberos principal name.
	Principal string

	// Secret is the password or client secret. It may be empty for schemes
	// that take their secret material elsewhere (keytabs, pseudo auth).
	Secret string
}

// Authenticator obtains a fresh Token from the service. Implementations
// perform a single round trip against the probe endpoint.
//
// On failure an *AuthError is returned, along with a Token that may be
// partially usable or nil.
type Authenticator interface {
	Authenticate(ctx context.Context, serviceURL *url.URL, creds Credentials) (*Token, error)
}

// AuthError reports a failed token acquisition.
type AuthError struct {
	Scheme     string
	URL        string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s authentication against %s failed with HTTP %d: %v", e.Scheme, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s authentication against %s failed: %v", e.Scheme, e.URL, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ProbeURL returns the probe endpoint for serviceURL with the extra query
// parameters added.
func ProbeURL(serviceURL *url.URL, extra url.Values) *url.URL {
	u := *serviceURL
	u.Path = strings.TrimSuffix(u.Path, "/") + ProbePath
	u.RawPath = ""

	q := url.Values{"op": []string{ProbeOp}}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return &u
}

// tokenFromResponse extracts the hadoop.auth cookie from a probe response.
func tokenFromResponse(scheme string, probe *url.URL, resp *http.Response) (*Token, error) {
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AuthError{
			Scheme:     scheme,
			URL:        probe.Redacted(),
			StatusCode: resp.StatusCode,
			Err:        errors.New(resp.Status),
		}
	}

	for _, c := range resp.Cookies() {
		if c.Name != AuthCookieName {
			continue
		}
		tok, err := ParseAuthCookie(c.Value)
		if err != nil {
			return nil, &AuthError{Scheme: scheme, URL: probe.Redacted(), Err: err}
		}
		return tok, nil
	}

	return nil, &AuthError{Scheme: scheme, URL: probe.Redacted(), Err: ErrNoAuthCookie}
}

func newProbeRequest(ctx context.Context, probe *url.URL) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probe.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
