package auth

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/distribution/webhdfs/internal/dcontext"
	"github.com/distribution/webhdfs/metrics"
	events "github.com/docker/go-events"
)

// Context is the per-connection state a Guard authenticates for.
type Context struct {
	ServiceURL  *url.URL
	Credentials Credentials
}

// RefreshEvent is published to the guard's sink after every refresh.
type RefreshEvent struct {
	Principal  string
	ServiceURL string
	Token      *Token
	Err        error
	At         time.Time
}

// GuardStats counts refresh activity over the lifetime of a Guard.
type GuardStats struct {
	Refreshes int64
	Failures  int64
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithClock replaces time.Now for freshness checks.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		g.now = now
	}
}

// WithEventSink publishes a RefreshEvent to sink after each refresh.
func WithEventSink(sink events.Sink) GuardOption {
	return func(g *Guard) {
		g.sink = sink
	}
}

// Guard hands out a fresh Token, refreshing it through the Authenticator
// when the current one has expired or was never issued. Refreshes are
// serialized per guard; concurrent callers that find the token stale wait
// for a single refresh and share its result, whether it succeeded or not.
//
// A failed refresh does not fail the caller. The failure is logged and the
// best-effort token is installed, leaving the service to reject the request.
type Guard struct {
	conn          Context
	authenticator Authenticator
	now           func() time.Time
	sink          events.Sink

	mu    sync.Mutex
	token atomic.Pointer[Token]

	// generation counts completed refreshes.
	generation atomic.Uint64

	refreshes atomic.Int64
	failures  atomic.Int64
}

// NewGuard returns a Guard holding an unissued token.
func NewGuard(conn Context, authenticator Authenticator, opts ...GuardOption) *Guard {
	g := &Guard{
		conn:          conn,
		authenticator: authenticator,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.token.Store(&Token{})
	return g
}

// EnsureValid returns a token that was fresh when checked, refreshing first
// if needed. It never returns nil.
func (g *Guard) EnsureValid(ctx context.Context) *Token {
	if t := g.token.Load(); !t.Expired(g.now()) {
		return t
	}

	gen := g.generation.Load()

	g.mu.Lock()
	defer g.mu.Unlock()

	// another caller refreshed while we waited; its outcome stands even
	// when the refresh failed
	if g.generation.Load() != gen {
		return g.token.Load()
	}
	if t := g.token.Load(); !t.Expired(g.now()) {
		return t
	}

	return g.refresh(ctx)
}

// Token returns the current token without checking freshness.
func (g *Guard) Token() *Token {
	return g.token.Load()
}

// Invalidate discards the current token so the next EnsureValid refreshes.
func (g *Guard) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token.Store(&Token{})
}

// Stats returns the refresh counters.
func (g *Guard) Stats() GuardStats {
	return GuardStats{
		Refreshes: g.refreshes.Load(),
		Failures:  g.failures.Load(),
	}
}

// refresh must be called with g.mu held.
func (g *Guard) refresh(ctx context.Context) *Token {
	var service string
	if g.conn.ServiceURL != nil {
		service = g.conn.ServiceURL.Redacted()
	}
	logger := dcontext.GetLoggerWithFields(ctx, map[interface{}]interface{}{
		"auth.principal": g.conn.Credentials.Principal,
		"auth.service":   service,
	})

	g.refreshes.Add(1)
	metrics.Refreshes.Inc(1)

	tok, err := g.authenticator.Authenticate(ctx, g.conn.ServiceURL, g.conn.Credentials)
	if tok == nil {
		tok = &Token{}
	}
	if err != nil {
		g.failures.Add(1)
		metrics.ProbeFailures.Inc(1)
		logger.WithError(err).Error("token refresh failed, continuing with unauthenticated token")
	} else {
		logger.Debugf("token refreshed: %s", tok)
	}

	g.token.Store(tok)
	g.generation.Add(1)

	if g.sink != nil {
		ev := RefreshEvent{
			Principal:  g.conn.Credentials.Principal,
			ServiceURL: service,
			Token:      tok,
			Err:        err,
			At:         g.now(),
		}
		if err := g.sink.Write(ev); err != nil {
			logger.WithError(err).Warn("dropping token refresh event")
		}
	}

	return tok
}
