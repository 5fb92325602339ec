package driver

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/distribution/webhdfs/client"
	"github.com/distribution/webhdfs/testutil"
	"github.com/stretchr/testify/require"
)

func newDriver(t *testing.T, params DriverParameters) (*Driver, *testutil.Server) {
	t.Helper()

	s := testutil.NewServer(t)
	c, err := client.New(client.Options{Endpoint: s.NameNode.URL, User: "alice", AuthScheme: "pseudo"})
	require.NoError(t, err)

	if params.RootDirectory == "" {
		params.RootDirectory = "/registry"
	}
	return New(c, params), s
}

func TestFromParameters(t *testing.T) {
	s := testutil.NewServer(t)

	d, err := FromParameters(map[string]interface{}{
		"endpoint":      s.NameNode.URL,
		"rootdirectory": "/base",
		"user":          "alice",
		"buffersize":    "64",
		"replication":   2,
		"permission":    "640",
	})
	require.NoError(t, err)
	require.Equal(t, "webhdfs", d.Name())
	require.Equal(t, 64, d.params.BufferSize)
	require.Equal(t, int16(2), d.params.Replication)

	require.NoError(t, d.PutContent(context.Background(), "/a", []byte("x")))
	require.True(t, s.Exists("/base/a"))
	require.Equal(t, "640", s.Permission("/base/a"))

	d, err = FromParameters(map[string]interface{}{"endpoint": s.NameNode.URL})
	require.NoError(t, err)
	require.Equal(t, "/", d.params.RootDirectory)
	require.Equal(t, client.DefaultWriterBufferSize, d.params.BufferSize)

	for _, parameters := range []map[string]interface{}{
		{},
		{"endpoint": s.NameNode.URL, "permission": "rw-r--r--"},
		{"endpoint": s.NameNode.URL, "permission": "7777"},
		{"endpoint": s.NameNode.URL, "buffersize": "lots"},
		{"endpoint": "ftp://namenode"},
	} {
		_, err := FromParameters(parameters)
		require.Error(t, err, "%v", parameters)
	}
}

func TestPutGetContent(t *testing.T) {
	d, s := newDriver(t, DriverParameters{})
	ctx := context.Background()

	require.NoError(t, d.PutContent(ctx, "/docker/blob", []byte("first")))
	require.NoError(t, d.PutContent(ctx, "/docker/blob", []byte("second")))

	stored, ok := s.File("/registry/docker/blob")
	require.True(t, ok)
	require.Equal(t, "second", string(stored))

	content, err := d.GetContent(ctx, "/docker/blob")
	require.NoError(t, err)
	require.Equal(t, "second", string(content))

	_, err = d.GetContent(ctx, "/docker/missing")
	require.Equal(t, PathNotFoundError{Path: "/docker/missing", DriverName: "webhdfs"}, err)
}

func TestReader(t *testing.T) {
	d, s := newDriver(t, DriverParameters{})
	ctx := context.Background()
	s.PutFile("/registry/data", []byte("0123456789"))

	rc, err := d.Reader(ctx, "/data", 4)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "456789", string(content))

	rc, err = d.Reader(ctx, "/data", 10)
	require.NoError(t, err)
	content, err = io.ReadAll(rc)
	require.NoError(t, err)
	require.Empty(t, content)

	_, err = d.Reader(ctx, "/data", 11)
	require.Equal(t, InvalidOffsetError{Path: "/data", Offset: 11}, err)

	_, err = d.Reader(ctx, "/data", -1)
	require.Equal(t, InvalidOffsetError{Path: "/data", Offset: -1}, err)

	_, err = d.Reader(ctx, "/missing", 0)
	require.True(t, errors.As(err, new(PathNotFoundError)))

	s.Mkdir("/registry/dir")
	_, err = d.Reader(ctx, "/dir", 0)
	require.Error(t, err)
}

func TestWriter(t *testing.T) {
	d, s := newDriver(t, DriverParameters{BufferSize: 4, Permission: "600"})
	ctx := context.Background()

	w, err := d.Writer(ctx, "/uploads/blob", false)
	require.NoError(t, err)
	_, err = io.Copy(w, strings.NewReader("hello "))
	require.NoError(t, err)
	require.NoError(t, w.Commit())
	require.Equal(t, "600", s.Permission("/registry/uploads/blob"))

	w, err = d.Writer(ctx, "/uploads/blob", true)
	require.NoError(t, err)
	require.Equal(t, int64(6), w.Size())
	_, err = w.Write([]byte("world"))
	require.NoError(t, err)
	require.Equal(t, int64(11), w.Size())
	require.NoError(t, w.Commit())

	content, err := d.GetContent(ctx, "/uploads/blob")
	require.NoError(t, err)
	require.Equal(t, "hello world", string(content))

	w, err = d.Writer(ctx, "/uploads/cancelled", false)
	require.NoError(t, err)
	_, err = w.Write([]byte("discarded"))
	require.NoError(t, err)
	require.NoError(t, w.Cancel())
	require.False(t, s.Exists("/registry/uploads/cancelled"))

	_, err = d.Writer(ctx, "/uploads/missing", true)
	require.Equal(t, PathNotFoundError{Path: "/uploads/missing", DriverName: "webhdfs"}, err)
}

func TestStatAndList(t *testing.T) {
	d, s := newDriver(t, DriverParameters{})
	ctx := context.Background()
	s.PutFile("/registry/repo/a", []byte("aaa"))
	s.PutFile("/registry/repo/b", []byte("b"))
	s.Mkdir("/registry/repo/c")

	fi, err := d.Stat(ctx, "/repo/a")
	require.NoError(t, err)
	require.Equal(t, "/repo/a", fi.Path)
	require.Equal(t, int64(3), fi.Size)
	require.False(t, fi.IsDir)
	require.False(t, fi.ModTime.IsZero())

	fi, err = d.Stat(ctx, "/repo")
	require.NoError(t, err)
	require.True(t, fi.IsDir)
	require.Zero(t, fi.Size)

	keys, err := d.List(ctx, "/repo")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"/repo/a", "/repo/b", "/repo/c"}, keys)

	keys, err = d.List(ctx, "/repo/a")
	require.NoError(t, err)
	require.Empty(t, keys)

	_, err = d.Stat(ctx, "/nope")
	require.Equal(t, PathNotFoundError{Path: "/nope", DriverName: "webhdfs"}, err)

	_, err = d.List(ctx, "/nope")
	require.Equal(t, PathNotFoundError{Path: "/nope", DriverName: "webhdfs"}, err)
}

func TestMove(t *testing.T) {
	d, s := newDriver(t, DriverParameters{})
	ctx := context.Background()
	s.PutFile("/registry/src", []byte("new"))
	s.PutFile("/registry/deep/dst", []byte("old"))

	require.NoError(t, d.Move(ctx, "/src", "/deep/dst"))
	require.False(t, s.Exists("/registry/src"))
	stored, _ := s.File("/registry/deep/dst")
	require.Equal(t, "new", string(stored))

	require.NoError(t, d.Move(ctx, "/deep/dst", "/other/parent/dst"))
	require.True(t, s.Exists("/registry/other/parent/dst"))

	err := d.Move(ctx, "/src", "/anywhere")
	require.Equal(t, PathNotFoundError{Path: "/src", DriverName: "webhdfs"}, err)
}

func TestDelete(t *testing.T) {
	d, s := newDriver(t, DriverParameters{})
	ctx := context.Background()
	s.PutFile("/registry/tree/a/1", []byte("1"))
	s.PutFile("/registry/tree/b", []byte("2"))

	require.NoError(t, d.Delete(ctx, "/tree"))
	require.False(t, s.Exists("/registry/tree"))
	require.False(t, s.Exists("/registry/tree/a/1"))

	err := d.Delete(ctx, "/tree")
	require.Equal(t, PathNotFoundError{Path: "/tree", DriverName: "webhdfs"}, err)
}

func TestWalk(t *testing.T) {
	d, s := newDriver(t, DriverParameters{})
	ctx := context.Background()
	s.PutFile("/registry/walk/b/2", []byte("2"))
	s.PutFile("/registry/walk/a/1", []byte("1"))
	s.PutFile("/registry/walk/a/0", []byte("0"))
	s.PutFile("/registry/walk/c", []byte("c"))

	var visited []string
	require.NoError(t, d.Walk(ctx, "/walk", func(fi FileInfo) error {
		visited = append(visited, fi.Path)
		return nil
	}))
	require.Equal(t, []string{
		"/walk/a", "/walk/a/0", "/walk/a/1",
		"/walk/b", "/walk/b/2",
		"/walk/c",
	}, visited)

	visited = nil
	require.NoError(t, d.Walk(ctx, "/walk", func(fi FileInfo) error {
		visited = append(visited, fi.Path)
		if fi.Path == "/walk/a" {
			return ErrSkipDir
		}
		return nil
	}))
	require.Equal(t, []string{"/walk/a", "/walk/b", "/walk/b/2", "/walk/c"}, visited)

	visited = nil
	require.NoError(t, d.Walk(ctx, "/walk", func(fi FileInfo) error {
		visited = append(visited, fi.Path)
		if fi.Path == "/walk/a/0" {
			return ErrSkipDir
		}
		return nil
	}))
	require.Equal(t, []string{"/walk/a", "/walk/a/0"}, visited)

	errStop := errors.New("stop")
	err := d.Walk(ctx, "/walk", func(fi FileInfo) error {
		if fi.Path == "/walk/b/2" {
			return errStop
		}
		return nil
	})
	require.Equal(t, errStop, err)

	// a directory removed after its parent was listed is skipped
	visited = nil
	require.NoError(t, d.Walk(ctx, "/walk", func(fi FileInfo) error {
		visited = append(visited, fi.Path)
		if fi.Path == "/walk/a" {
			require.NoError(t, d.Delete(ctx, "/walk/a"))
		}
		return nil
	}))
	require.Equal(t, []string{"/walk/a", "/walk/b", "/walk/b/2", "/walk/c"}, visited)

	err = d.Walk(ctx, "/absent", func(FileInfo) error { return nil })
	require.True(t, errors.As(err, new(PathNotFoundError)))
}
