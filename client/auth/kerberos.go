package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	krbclient "github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/spnego"
)

const kerberosScheme = "kerberos"

// DefaultKrb5Conf is used when no krb5conf parameter is configured.
const DefaultKrb5Conf = "/etc/krb5.conf"

func init() {
	Register(kerberosScheme, FactoryFunc(func(parameters map[string]interface{}, client *http.Client) (Authenticator, error) {
		var opts KerberosOptions
		if err := decodeParameters(parameters, &opts); err != nil {
			return nil, err
		}
		return NewKerberosAuthenticator(opts, client)
	}))
}

// KerberosOptions configures the SPNEGO authenticator.
type KerberosOptions struct {
	// Krb5Conf is the path of the krb5.conf describing realms and KDCs.
	Krb5Conf string `mapstructure:"krb5conf"`

	// Realm is used when the principal carries no @REALM suffix. When
	// empty the default_realm from krb5.conf applies.
	Realm string `mapstructure:"realm"`

	// Keytab, when set, is used instead of the credential secret.
	Keytab string `mapstructure:"keytab"`

	// SPN overrides the service principal. It defaults to HTTP/<host>.
	SPN string `mapstructure:"spn"`

	// DisablePAFXFast turns off FAST pre-authentication for KDCs that do
	// not support it (Active Directory).
	DisablePAFXFast bool `mapstructure:"disablepafxfast"`
}

// KerberosAuthenticator performs a SPNEGO negotiation on the probe request
// and captures the hadoop.auth cookie the service answers with.
type KerberosAuthenticator struct {
	opts   KerberosOptions
	cfg    *config.Config
	kt     *keytab.Keytab
	client *http.Client
}

// NewKerberosAuthenticator loads the Kerberos configuration and, when
// configured, the keytab.
func NewKerberosAuthenticator(opts KerberosOptions, client *http.Client) (*KerberosAuthenticator, error) {
	if opts.Krb5Conf == "" {
		opts.Krb5Conf = DefaultKrb5Conf
	}

	cfg, err := config.Load(opts.Krb5Conf)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", opts.Krb5Conf, err)
	}

	a := &KerberosAuthenticator{opts: opts, cfg: cfg, client: client}
	if opts.Keytab != "" {
		kt, err := keytab.Load(opts.Keytab)
		if err != nil {
			return nil, fmt.Errorf("loading keytab %s: %w", opts.Keytab, err)
		}
		a.kt = kt
	}
	if a.client == nil {
		a.client = http.DefaultClient
	}
	return a, nil
}

// Authenticate logs in to the KDC as creds.Principal and negotiates with
// the service. The Kerberos session is discarded afterwards; only the
// hadoop.auth cookie is retained.
func (a *KerberosAuthenticator) Authenticate(ctx context.Context, serviceURL *url.URL, creds Credentials) (*Token, error) {
	probe := ProbeURL(serviceURL, nil)
	fail := func(err error) (*Token, error) {
		return nil, &AuthError{Scheme: kerberosScheme, URL: probe.Redacted(), Err: err}
	}

	username, realm := splitPrincipal(creds.Principal, a.opts.Realm, a.cfg.LibDefaults.DefaultRealm)

	var cl *krbclient.Client
	if a.kt != nil {
		cl = krbclient.NewWithKeytab(username, realm, a.kt, a.cfg, krbclient.DisablePAFXFAST(a.opts.DisablePAFXFast))
	} else {
		cl = krbclient.NewWithPassword(username, realm, creds.Secret, a.cfg, krbclient.DisablePAFXFAST(a.opts.DisablePAFXFast))
	}
	defer cl.Destroy()

	if err := cl.Login(); err != nil {
		return fail(err)
	}

	req, err := newProbeRequest(ctx, probe)
	if err != nil {
		return fail(err)
	}
	if err := spnego.SetSPNEGOHeader(cl, req, a.opts.SPN); err != nil {
		return fail(err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	return tokenFromResponse(kerberosScheme, probe, resp)
}

// splitPrincipal separates user@REALM, falling back to the configured realm
// and then the krb5.conf default.
func splitPrincipal(principal, realm, defaultRealm string) (string, string) {
	if user, r, ok := strings.Cut(principal, "@"); ok && r != "" {
		return user, r
	}
	if realm != "" {
		return principal, realm
	}
	return principal, defaultRealm
}
