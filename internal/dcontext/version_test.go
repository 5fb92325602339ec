package dcontext

import (
	"context"
	"testing"
)

func TestVersionContext(t *testing.T) {
	ctx := Background()

	if GetVersion(ctx) != "" {
		t.Fatal("context should not yet have a version")
	}

	expected := "0.1-whatever"
	ctx = WithVersion(ctx, expected)
	version := GetVersion(ctx)

	if version != expected {
		t.Fatalf("version was not set: %q != %q", version, expected)
	}
}

func TestRequestID(t *testing.T) {
	ctx := Background()
	if GetRequestID(ctx) != "" {
		t.Fatal("context should not yet have a request id")
	}

	ctx = WithRequestID(ctx)
	id := GetRequestID(ctx)
	if id == "" {
		t.Fatal("request id was not set")
	}

	if again := GetRequestID(WithRequestID(ctx)); again != id {
		t.Fatalf("request id was replaced: %q != %q", again, id)
	}

	if other := GetRequestID(WithRequestID(Background())); other == id {
		t.Fatalf("request ids should differ: %q", other)
	}
}

func TestDetachedContext(t *testing.T) {
	parent, cancel := context.WithCancel(WithRequestID(Background()))
	detached := DetachedContext(parent)
	cancel()

	if detached.Err() != nil {
		t.Fatalf("detached context was canceled: %v", detached.Err())
	}
	if GetRequestID(detached) != GetRequestID(parent) {
		t.Fatal("detached context lost the request id")
	}
}

func TestWithValues(t *testing.T) {
	ctx := WithValues(Background(), map[string]any{"environment": "test"})
	if v := GetStringValue(ctx, "environment"); v != "test" {
		t.Fatalf("unexpected value: %q", v)
	}
	if v := GetStringValue(ctx, "missing"); v != "" {
		t.Fatalf("unexpected value: %q", v)
	}
}
