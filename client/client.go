// Package client is a WebHDFS client. Each operation obtains a fresh token,
// executes one resolved request (following the redirect of data
// operations) and returns the service's answer as a Response.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/distribution/webhdfs/client/auth"
	"github.com/distribution/webhdfs/client/transport"
	"github.com/distribution/webhdfs/internal/dcontext"
	events "github.com/docker/go-events"
)

// PathPrefix is the root of every operation path.
const PathPrefix = "/webhdfs/v1"

// Options configures a Client.
type Options struct {
	// Endpoint is the service root, e.g. http://namenode:9870.
	Endpoint string

	// User is sent as user.name on every request. Set it for simple
	// authentication only; Kerberos and bearer tokens carry the identity.
	User string

	// Authenticator obtains tokens. When nil and AuthScheme is set, one is
	// created from the registered schemes. With neither, requests carry no
	// token.
	Authenticator auth.Authenticator

	// AuthScheme and AuthParameters select a registered authenticator.
	AuthScheme     string
	AuthParameters map[string]interface{}

	// Credentials are presented to the Authenticator. The principal
	// defaults to User.
	Credentials auth.Credentials

	// Transport tunes the request executor. BaseURL is taken from Endpoint
	// when unset.
	Transport transport.Config

	// Events receives token refresh events.
	Events events.Sink
}

// Client issues WebHDFS operations. It is safe for concurrent use.
type Client struct {
	exec  *transport.Executor
	guard *auth.Guard
	user  string
}

// New returns a Client for opts.
func New(opts Options) (*Client, error) {
	cfg := opts.Transport
	if cfg.BaseURL == nil {
		if opts.Endpoint == "" {
			return nil, errors.New("client: endpoint is required")
		}
		u, err := url.Parse(opts.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("client: invalid endpoint: %w", err)
		}
		cfg.BaseURL = u
	}

	exec, err := transport.New(cfg)
	if err != nil {
		return nil, err
	}

	authenticator := opts.Authenticator
	if authenticator == nil && opts.AuthScheme != "" {
		authenticator, err = auth.Create(opts.AuthScheme, opts.AuthParameters, exec.HTTPClient())
		if err != nil {
			return nil, err
		}
	}

	c := &Client{exec: exec, user: opts.User}
	if authenticator != nil {
		creds := opts.Credentials
		if creds.Principal == "" {
			creds.Principal = opts.User
		}

		var guardOpts []auth.GuardOption
		if opts.Events != nil {
			guardOpts = append(guardOpts, auth.WithEventSink(opts.Events))
		}
		c.guard = auth.NewGuard(auth.Context{
			ServiceURL:  exec.BaseURL(),
			Credentials: creds,
		}, authenticator, guardOpts...)
	}
	return c, nil
}

// Guard returns the token guard, or nil when requests are unauthenticated.
func (c *Client) Guard() *auth.Guard {
	return c.guard
}

// Do executes a resolved request. Error statuses are returned as a
// Response; the error is a *ConnectionError or *TransferError.
func (c *Client) Do(ctx context.Context, d *transport.Descriptor) (*Response, error) {
	ctx = dcontext.WithRequestID(ctx)
	logger := dcontext.GetLoggerWithFields(ctx, map[interface{}]interface{}{
		"webhdfs.op":          d.Op,
		"http.request.method": d.Method,
	})

	var token *auth.Token
	if c.guard != nil {
		token = c.guard.EnsureValid(ctx)
	}

	if d.Query == nil {
		d.Query = url.Values{}
	}
	if c.user != "" {
		d.Query.Set("user.name", c.user)
	}

	raw, err := c.exec.Execute(ctx, token, d)
	if err != nil {
		logger.WithError(err).Error("operation failed")
		return nil, err
	}

	resp := Translate(raw)
	logger.WithField("http.response.status", resp.StatusCode).Debugf("%s %s", d.Op, d.Path)
	return resp, nil
}

// operationPath percent-encodes p segment by segment under PathPrefix.
func operationPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return PathPrefix + strings.Join(segments, "/")
}
