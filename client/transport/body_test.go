package transport

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBodyFromOffset(t *testing.T) {
	p := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(p, []byte("0123456789"), 0o644))

	f, err := os.Open(p)
	require.NoError(t, err)
	_, err = f.Seek(4, io.SeekStart)
	require.NoError(t, err)

	b, err := FileBody(f)
	require.NoError(t, err)
	assert.Equal(t, int64(6), b.Size())

	data, err := io.ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, "456789", string(data))

	require.NoError(t, b.Close())
	_, err = f.Read(make([]byte, 1))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestSizedBodyBuffersUnknownLength(t *testing.T) {
	src := &trackingBody{BodySource: NewBody(strings.NewReader("buffer me"), -1)}

	b, err := sizedBody(src)
	require.NoError(t, err)
	assert.Equal(t, int64(9), b.Size())
	assert.EqualValues(t, 1, src.closes.Load())

	known := BytesBody([]byte("abc"))
	b, err = sizedBody(known)
	require.NoError(t, err)
	assert.Same(t, known, b)
}

func TestCloseOnce(t *testing.T) {
	src := &trackingBody{BodySource: BytesBody(nil)}
	c := &closeOnce{BodySource: src}
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.EqualValues(t, 1, src.closes.Load())
}
