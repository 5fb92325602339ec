package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// AuthCookieName is the name of the signed cookie the service issues after a
// successful authentication round trip.
const AuthCookieName = "hadoop.auth"

// Scheme identifies how a Token is presented to the service.
type Scheme int

const (
	// SchemeCookie presents the token as the hadoop.auth cookie.
	SchemeCookie Scheme = iota
	// SchemeBearer presents the token as an OAuth2 bearer credential.
	SchemeBearer
)

func (s Scheme) String() string {
	switch s {
	case SchemeCookie:
		return "cookie"
	case SchemeBearer:
		return "bearer"
	default:
		return fmt.Sprintf("scheme(%d)", int(s))
	}
}

// ErrMalformedAuthCookie is returned when a hadoop.auth cookie value does not
// carry a parseable expiry.
var ErrMalformedAuthCookie = errors.New("malformed hadoop.auth cookie")

// Token is an issued credential together with its expiry. Tokens are
// immutable once handed out; a refresh replaces the whole value.
//
// The zero Token has never been issued and is always expired.
type Token struct {
	// Secret is the opaque credential material.
	Secret string

	// Expires is the instant after which the service rejects the token. The
	// zero time on an issued token means it does not expire.
	Expires time.Time

	// Scheme selects how the token is attached to requests.
	Scheme Scheme
}

// IsSet reports whether the token has been issued.
func (t *Token) IsSet() bool {
	return t != nil && t.Secret != ""
}

// Expired reports whether the token must be refreshed before use at now.
func (t *Token) Expired(now time.Time) bool {
	if !t.IsSet() {
		return true
	}
	if t.Expires.IsZero() {
		return false
	}
	return !now.Before(t.Expires)
}

// SetHeaders attaches the token to req. Unissued tokens attach nothing.
func (t *Token) SetHeaders(req *http.Request) {
	if !t.IsSet() {
		return
	}
	switch t.Scheme {
	case SchemeBearer:
		req.Header.Set("Authorization", "Bearer "+t.Secret)
	default:
		req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: t.Secret})
	}
}

// String never includes the secret.
func (t *Token) String() string {
	if !t.IsSet() {
		return "token(unset)"
	}
	if t.Expires.IsZero() {
		return fmt.Sprintf("token(%s)", t.Scheme)
	}
	return fmt.Sprintf("token(%s, expires %s)", t.Scheme, t.Expires.UTC().Format(time.RFC3339))
}

// ParseAuthCookie builds a Token from the value of a hadoop.auth cookie. The
// value is an &-joined list of key=value fields, for example
//
//	u=alice&p=alice@EXAMPLE.COM&t=kerberos&e=1449584563902&s=AbC=
//
// where e is the expiry in milliseconds since the epoch. Field order is not
// significant.
func ParseAuthCookie(value string) (*Token, error) {
	value = strings.Trim(value, `"`)
	if value == "" {
		return nil, ErrMalformedAuthCookie
	}

	for _, field := range strings.Split(value, "&") {
		key, v, ok := strings.Cut(field, "=")
		if !ok || key != "e" {
			continue
		}
		millis, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: expiry %q: %v", ErrMalformedAuthCookie, v, err)
		}
		return &Token{
			Secret:  value,
			Expires: time.UnixMilli(millis),
			Scheme:  SchemeCookie,
		}, nil
	}

	return nil, fmt.Errorf("%w: no expiry field", ErrMalformedAuthCookie)
}
