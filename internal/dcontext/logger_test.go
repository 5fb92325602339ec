package dcontext

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func newBufferedLogger() (*logrus.Entry, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	l.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(l), &buf
}

func TestGetLoggerIncludesRequestID(t *testing.T) {
	entry, buf := newBufferedLogger()
	ctx := WithLogger(Background(), entry)
	ctx = WithRequestID(ctx)

	GetLogger(ctx).Info("hello")

	if !strings.Contains(buf.String(), "request.id="+GetRequestID(ctx)) {
		t.Fatalf("request id missing from log line: %q", buf.String())
	}
}

func TestGetLoggerWithFields(t *testing.T) {
	entry, buf := newBufferedLogger()
	ctx := WithLogger(Background(), entry)

	GetLoggerWithFields(ctx, map[any]any{"webhdfs.op": "LISTSTATUS", 42: "answer"}).Debug("listing")

	out := buf.String()
	for _, want := range []string{"webhdfs.op=LISTSTATUS", "42=answer", "msg=listing"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestSetDefaultLogger(t *testing.T) {
	entry, buf := newBufferedLogger()

	defaultLoggerMu.RLock()
	previous := defaultLogger
	defaultLoggerMu.RUnlock()
	t.Cleanup(func() { SetDefaultLogger(previous) })

	SetDefaultLogger(entry.WithField("component", "test"))
	GetLoggerWithField(Background(), "path", "/tmp").Warn("careful")

	out := buf.String()
	if !strings.Contains(out, "component=test") || !strings.Contains(out, "path=/tmp") {
		t.Fatalf("unexpected log output: %q", out)
	}
}
