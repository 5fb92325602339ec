package dcontext

import (
	"context"

	"github.com/google/uuid"
)

// Background returns a non-nil, empty Context.
func Background() context.Context {
	return context.Background()
}

type stringMapContext struct {
	context.Context
	m map[string]any
}

// WithValues returns a context that proxies lookups through a map. Only
// supports string keys.
func WithValues(ctx context.Context, m map[string]any) context.Context {
	mo := make(map[string]any, len(m))
	for k, v := range m {
		mo[k] = v
	}

	return stringMapContext{
		Context: ctx,
		m:       mo,
	}
}

func (smc stringMapContext) Value(key any) any {
	if ks, ok := key.(string); ok {
		if v, ok := smc.m[ks]; ok {
			return v
		}
	}

	return smc.Context.Value(key)
}

// GetStringValue returns a string value from the context. The empty string
// will be returned if not found.
func GetStringValue(ctx context.Context, key any) (value string) {
	if valuev, ok := ctx.Value(key).(string); ok {
		value = valuev
	}
	return value
}

type versionKey struct{}

func (versionKey) String() string { return "version" }

// WithVersion stores the application version in the context. The new
// context gets a logger to ensure log messages are marked with the
// application version.
func WithVersion(ctx context.Context, version string) context.Context {
	ctx = context.WithValue(ctx, versionKey{}, version)
	return WithLogger(ctx, GetLogger(ctx, versionKey{}))
}

// GetVersion returns the application version from the context. An empty
// string may returned if the version was not set on the context.
func GetVersion(ctx context.Context) string {
	return GetStringValue(ctx, versionKey{})
}

type requestIDKey struct{}

func (requestIDKey) String() string { return "request.id" }

// WithRequestID returns a context carrying a fresh time-ordered request id.
// An id already present on ctx is kept.
func WithRequestID(ctx context.Context) context.Context {
	if GetRequestID(ctx) != "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, uuid.Must(uuid.NewV7()).String())
}

// GetRequestID returns the request id assigned by WithRequestID, or the
// empty string.
func GetRequestID(ctx context.Context) string {
	return GetStringValue(ctx, requestIDKey{})
}

// DetachedContext returns a context that won't be canceled when the parent
// context is canceled. Values (logger, request id) are preserved.
func DetachedContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
