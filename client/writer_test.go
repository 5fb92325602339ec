package client

import (
	"bytes"
	"context"
	"testing"

	"github.com/distribution/webhdfs/testutil"
	"gopkg.in/check.v1"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { check.TestingT(t) }

type WriterSuite struct {
	srv    *testutil.Server
	client *Client
}

var _ = check.Suite(&WriterSuite{})

func (s *WriterSuite) SetUpTest(c *check.C) {
	s.srv = testutil.NewServer(nil)
	client, err := New(Options{Endpoint: s.srv.NameNode.URL, User: "alice", AuthScheme: "pseudo"})
	c.Assert(err, check.IsNil)
	s.client = client
}

func (s *WriterSuite) TearDownTest(c *check.C) {
	s.srv.Close()
}

func (s *WriterSuite) appends() int {
	n := 0
	for _, r := range s.srv.Requests() {
		if r.Node == "datanode" && r.Op() == "APPEND" {
			n++
		}
	}
	return n
}

func (s *WriterSuite) TestWriteFlushesFullBuffers(c *check.C) {
	w, err := NewWriter(context.Background(), s.client, "/out/data.bin", WriterOptions{BufferSize: 4})
	c.Assert(err, check.IsNil)

	data, ok := s.srv.File("/out/data.bin")
	c.Assert(ok, check.Equals, true)
	c.Assert(data, check.HasLen, 0)

	n, err := w.Write([]byte("abcdefghij"))
	c.Assert(err, check.IsNil)
	c.Assert(n, check.Equals, 10)
	c.Assert(w.Size(), check.Equals, int64(10))

	// bufio writes through when the write exceeds the buffer
	c.Assert(s.appends() >= 1, check.Equals, true)

	c.Assert(w.Close(), check.IsNil)

	data, _ = s.srv.File("/out/data.bin")
	c.Assert(string(data), check.Equals, "abcdefghij")
}

func (s *WriterSuite) TestWriteBuffersSmallWrites(c *check.C) {
	w, err := NewWriter(context.Background(), s.client, "/out/small", WriterOptions{BufferSize: 1024})
	c.Assert(err, check.IsNil)

	for i := 0; i < 3; i++ {
		_, err := w.Write([]byte("row\n"))
		c.Assert(err, check.IsNil)
	}
	c.Assert(s.appends(), check.Equals, 0)

	c.Assert(w.Commit(), check.IsNil)
	c.Assert(s.appends(), check.Equals, 1)

	data, _ := s.srv.File("/out/small")
	c.Assert(string(data), check.Equals, "row\nrow\nrow\n")

	_, err = w.Write([]byte("late"))
	c.Assert(err, check.ErrorMatches, "already committed")
}

func (s *WriterSuite) TestAppendContinuesExistingFile(c *check.C) {
	s.srv.PutFile("/out/log", []byte("first\n"))

	w, err := NewWriter(context.Background(), s.client, "/out/log", WriterOptions{Append: true})
	c.Assert(err, check.IsNil)
	c.Assert(w.Size(), check.Equals, int64(6))

	_, err = w.Write([]byte("second\n"))
	c.Assert(err, check.IsNil)
	c.Assert(w.Close(), check.IsNil)

	data, _ := s.srv.File("/out/log")
	c.Assert(string(data), check.Equals, "first\nsecond\n")
	c.Assert(w.Close(), check.ErrorMatches, "already closed")
}

func (s *WriterSuite) TestAppendToMissingFile(c *check.C) {
	_, err := NewWriter(context.Background(), s.client, "/out/missing", WriterOptions{Append: true})
	c.Assert(err, check.ErrorMatches, ".*FileNotFoundException.*")
}

func (s *WriterSuite) TestCancelDeletesFile(c *check.C) {
	ctx, cancel := context.WithCancel(context.Background())
	w, err := NewWriter(ctx, s.client, "/out/partial", WriterOptions{})
	c.Assert(err, check.IsNil)

	_, err = w.Write(bytes.Repeat([]byte("z"), 16))
	c.Assert(err, check.IsNil)

	cancel()
	c.Assert(w.Cancel(), check.IsNil)
	c.Assert(s.srv.Exists("/out/partial"), check.Equals, false)

	_, err = w.Write([]byte("more"))
	c.Assert(err, check.ErrorMatches, "already cancelled")
	c.Assert(w.Close(), check.IsNil)
}
