package client

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/distribution/webhdfs/client/transport"
	"github.com/distribution/webhdfs/internal/dcontext"
)

// DefaultWriterBufferSize is the amount buffered before an APPEND is sent.
const DefaultWriterBufferSize = 1 << 20

// WriterOptions configures a Writer.
type WriterOptions struct {
	// BufferSize is flushed with one APPEND each time it fills.
	BufferSize int

	// Append continues an existing file instead of replacing it.
	Append bool

	// Permission and Replication apply when the file is created.
	Permission  os.FileMode
	Replication int16
}

// Writer buffers writes to a remote file and appends each full buffer.
type Writer struct {
	ctx       context.Context
	client    *Client
	bw        *bufio.Writer
	path      string
	size      int64
	closed    bool
	committed bool
	cancelled bool
}

// NewWriter creates the file at p, or opens it for appending, and returns a
// Writer over it.
func NewWriter(ctx context.Context, c *Client, p string, opts WriterOptions) (*Writer, error) {
	var size int64
	if opts.Append {
		fi, err := c.Stat(ctx, p)
		if err != nil {
			return nil, err
		}
		size = fi.Length
	} else {
		resp, err := c.Create(ctx, p, transport.BytesBody(nil), CreateOptions{
			Overwrite:   true,
			Permission:  opts.Permission,
			Replication: opts.Replication,
		})
		if err != nil {
			return nil, err
		}
		if err := resp.Err(); err != nil {
			return nil, err
		}
	}

	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultWriterBufferSize
	}

	w := &Writer{
		ctx:    ctx,
		client: c,
		path:   p,
		size:   size,
	}
	w.bw = bufio.NewWriterSize(&appender{w: w}, bufferSize)
	return w, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("already closed")
	} else if w.committed {
		return 0, fmt.Errorf("already committed")
	} else if w.cancelled {
		return 0, fmt.Errorf("already cancelled")
	}

	n, err := w.bw.Write(p)
	w.size += int64(n)
	return n, err
}

// Size returns the file size including buffered bytes.
func (w *Writer) Size() int64 {
	return w.size
}

// Close flushes buffered bytes.
func (w *Writer) Close() error {
	if w.closed {
		return fmt.Errorf("already closed")
	}
	w.closed = true
	if w.cancelled {
		return nil
	}
	return w.bw.Flush()
}

// Cancel discards buffered bytes and deletes the file.
func (w *Writer) Cancel() error {
	if w.closed {
		return fmt.Errorf("already closed")
	} else if w.committed {
		return fmt.Errorf("already committed")
	}
	w.cancelled = true

	// delete even if the writing context is done
	resp, err := w.client.Delete(dcontext.DetachedContext(w.ctx), w.path, false)
	if err != nil {
		return err
	}
	return DecodeBoolean(resp)
}

// Commit flushes buffered bytes. Further writes fail.
func (w *Writer) Commit() error {
	if w.closed {
		return fmt.Errorf("already closed")
	} else if w.committed {
		return fmt.Errorf("already committed")
	} else if w.cancelled {
		return fmt.Errorf("already cancelled")
	}
	w.committed = true
	return w.bw.Flush()
}

// appender sends each flushed buffer as one APPEND.
type appender struct {
	w *Writer
}

func (a *appender) Write(p []byte) (int, error) {
	resp, err := a.w.client.Append(a.w.ctx, a.w.path, transport.BytesBody(p), 0)
	if err != nil {
		return 0, err
	}
	if err := resp.Err(); err != nil {
		return 0, err
	}
	return len(p), nil
}
