package version

import (
	"bytes"
	"strings"
	"testing"
)

func TestFprintVersion(t *testing.T) {
	var buf bytes.Buffer
	FprintVersion(&buf)

	fields := strings.Fields(buf.String())
	if len(fields) != 3 {
		t.Fatalf("unexpected version line: %q", buf.String())
	}
	if fields[1] != Package() || fields[2] != Version() {
		t.Fatalf("unexpected version line: %q", buf.String())
	}
}

func TestUserAgent(t *testing.T) {
	if ua := UserAgent(); !strings.HasPrefix(ua, "webhdfs-go/") || !strings.HasSuffix(ua, Version()) {
		t.Fatalf("unexpected user agent: %q", ua)
	}
}
