package auth

import (
	"context"
	"net/http"
	"net/url"
)

const pseudoScheme = "pseudo"

func init() {
	Register(pseudoScheme, FactoryFunc(func(parameters map[string]interface{}, client *http.Client) (Authenticator, error) {
		if err := decodeParameters(parameters, &struct{}{}); err != nil {
			return nil, err
		}
		return &PseudoAuthenticator{Client: client}, nil
	}))
}

// PseudoAuthenticator implements simple authentication: the principal is
// asserted through the user.name query parameter and the service answers
// with a signed hadoop.auth cookie.
type PseudoAuthenticator struct {
	Client *http.Client
}

// Authenticate probes the service as creds.Principal.
func (a *PseudoAuthenticator) Authenticate(ctx context.Context, serviceURL *url.URL, creds Credentials) (*Token, error) {
	probe := ProbeURL(serviceURL, url.Values{"user.name": []string{creds.Principal}})

	req, err := newProbeRequest(ctx, probe)
	if err != nil {
		return nil, &AuthError{Scheme: pseudoScheme, URL: probe.Redacted(), Err: err}
	}

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &AuthError{Scheme: pseudoScheme, URL: probe.Redacted(), Err: err}
	}
	defer resp.Body.Close()

	return tokenFromResponse(pseudoScheme, probe, resp)
}
