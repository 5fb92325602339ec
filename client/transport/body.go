package transport

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

// BodySource is the payload of an upload. Size reports the exact number of
// bytes the source yields, or a negative value when unknown.
type BodySource interface {
	io.ReadCloser
	Size() int64
}

type body struct {
	io.Reader
	closer io.Closer
	size   int64
}

func (b *body) Size() int64 { return b.size }

func (b *body) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// NewBody wraps r as a BodySource of the given size. Pass a negative size if
// the length is not known up front. If r is an io.Closer it is closed with
// the source.
func NewBody(r io.Reader, size int64) BodySource {
	b := &body{Reader: r, size: size}
	if c, ok := r.(io.Closer); ok {
		b.closer = c
	}
	return b
}

// BytesBody returns a BodySource over p.
func BytesBody(p []byte) BodySource {
	return &body{Reader: bytes.NewReader(p), size: int64(len(p))}
}

// FileBody returns a BodySource yielding the remainder of f from its current
// offset. The file is closed with the source.
func FileBody(f *os.File) (BodySource, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return NewBody(f, -1), nil
	}
	offset, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	return NewBody(f, fi.Size()-offset), nil
}

// sizedBody resolves an unknown size by buffering the remainder of src in
// memory. src is closed when its size had to be computed.
func sizedBody(src BodySource) (BodySource, error) {
	if src.Size() >= 0 {
		return src, nil
	}
	defer src.Close()

	p, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("buffering body of unknown size: %w", err)
	}
	return BytesBody(p), nil
}

// closeOnce guards a source against the transport and the executor both
// closing it.
type closeOnce struct {
	BodySource
	once sync.Once
	err  error
}

func (c *closeOnce) Close() error {
	c.once.Do(func() {
		c.err = c.BodySource.Close()
	})
	return c.err
}
