// Package driver provides a rooted file system over a WebHDFS client, in the
// shape of a blob storage driver: whole-content reads and writes, offset
// readers, resumable writers, listing, moving and recursive deletion. All
// provided paths are subpaths of the root directory.
package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/distribution/webhdfs/client"
	"github.com/distribution/webhdfs/client/transport"
	"github.com/mitchellh/mapstructure"
)

const driverName = "webhdfs"

// DriverParameters encapsulates all of the driver parameters after all
// values have been set.
type DriverParameters struct {
	Endpoint      string `mapstructure:"endpoint"`
	RootDirectory string `mapstructure:"rootdirectory"`
	User          string `mapstructure:"user"`
	BufferSize    int    `mapstructure:"buffersize"`
	Replication   int16  `mapstructure:"replication"`

	// Permission is the octal permission of created files, e.g. "640".
	Permission string `mapstructure:"permission"`
}

// Driver stores content under RootDirectory through a Client.
type Driver struct {
	client *client.Client
	params DriverParameters
	perm   os.FileMode
}

// FromParameters constructs a new Driver with a given parameters map.
// Required parameters:
// - endpoint
// Optional parameters:
// - rootdirectory
// - user
// - buffersize
// - replication
// - permission
func FromParameters(parameters map[string]interface{}) (*Driver, error) {
	params := DriverParameters{
		RootDirectory: "/",
		BufferSize:    client.DefaultWriterBufferSize,
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &params,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(parameters); err != nil {
		return nil, fmt.Errorf("%s: invalid parameters: %v", driverName, err)
	}
	if params.Endpoint == "" {
		return nil, fmt.Errorf("%s: no endpoint parameter provided", driverName)
	}
	if _, err := parsePermission(params.Permission); err != nil {
		return nil, err
	}

	c, err := client.New(client.Options{
		Endpoint: params.Endpoint,
		User:     params.User,
	})
	if err != nil {
		return nil, err
	}
	return New(c, params), nil
}

// New constructs a Driver over an existing client. Endpoint and User are
// ignored; the client carries them.
func New(c *client.Client, params DriverParameters) *Driver {
	if params.RootDirectory == "" {
		params.RootDirectory = "/"
	}
	perm, _ := parsePermission(params.Permission)
	return &Driver{client: c, params: params, perm: perm}
}

func parsePermission(s string) (os.FileMode, error) {
	if s == "" {
		return 0, nil
	}
	perm, err := strconv.ParseUint(s, 8, 32)
	if err != nil || perm > 0o1777 {
		return 0, fmt.Errorf("%s: invalid permission %q", driverName, s)
	}
	return os.FileMode(perm), nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return driverName
}

// GetContent retrieves the content stored at "path" as a []byte.
func (d *Driver) GetContent(ctx context.Context, subPath string) ([]byte, error) {
	rc, err := d.Reader(ctx, subPath, 0)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// PutContent stores the []byte content at a location designated by "path",
// replacing any previous content.
func (d *Driver) PutContent(ctx context.Context, subPath string, contents []byte) error {
	resp, err := d.client.Create(ctx, d.fullPath(subPath), transport.BytesBody(contents), client.CreateOptions{
		Overwrite:   true,
		Permission:  d.perm,
		Replication: d.params.Replication,
	})
	if err != nil {
		return err
	}
	return resp.Err()
}

// Reader retrieves an io.ReadCloser for the content stored at "path" with a
// given byte offset. The content is streamed as it is read.
func (d *Driver) Reader(ctx context.Context, subPath string, offset int64) (io.ReadCloser, error) {
	if offset < 0 {
		return nil, InvalidOffsetError{Path: subPath, Offset: offset}
	}

	fullPath := d.fullPath(subPath)
	status, err := d.client.Stat(ctx, fullPath)
	if err != nil {
		return nil, d.pathError(subPath, err)
	} else if status.IsDir() {
		return nil, fmt.Errorf("%s: %s is a directory", driverName, subPath)
	} else if status.Length < offset {
		return nil, InvalidOffsetError{Path: subPath, Offset: offset}
	}

	if status.Length == offset {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}

	pr, pw := io.Pipe()
	go func() {
		resp, err := d.client.Open(ctx, fullPath, pw, client.OpenOptions{Offset: offset})
		if err == nil {
			err = resp.Err()
		}
		pw.CloseWithError(err)
	}()
	return pr, nil
}

// Writer returns a FileWriter which will store the content written to it
// at the location designated by "path" after the call to Commit. With
// append, writing continues the existing file.
func (d *Driver) Writer(ctx context.Context, subPath string, append bool) (*client.Writer, error) {
	w, err := client.NewWriter(ctx, d.client, d.fullPath(subPath), client.WriterOptions{
		BufferSize:  d.params.BufferSize,
		Append:      append,
		Permission:  d.perm,
		Replication: d.params.Replication,
	})
	if err != nil {
		return nil, d.pathError(subPath, err)
	}
	return w, nil
}

// Stat retrieves the FileInfo for the given path, including the current size
// in bytes and the modification time.
func (d *Driver) Stat(ctx context.Context, subPath string) (FileInfo, error) {
	status, err := d.client.Stat(ctx, d.fullPath(subPath))
	if err != nil {
		return FileInfo{}, d.pathError(subPath, err)
	}
	return fileInfo(subPath, status), nil
}

// List returns a list of the objects that are direct descendants of the given
// path.
func (d *Driver) List(ctx context.Context, subPath string) ([]string, error) {
	statuses, err := d.list(ctx, subPath)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(statuses))
	for _, fi := range statuses {
		keys = append(keys, fi.Path)
	}
	return keys, nil
}

func (d *Driver) list(ctx context.Context, subPath string) ([]FileInfo, error) {
	statuses, err := d.client.List(ctx, d.fullPath(subPath))
	if err != nil {
		return nil, d.pathError(subPath, err)
	}

	infos := make([]FileInfo, 0, len(statuses))
	for _, status := range statuses {
		// a file lists itself with an empty suffix
		if status.PathSuffix == "" {
			continue
		}
		infos = append(infos, fileInfo(path.Join("/", subPath, status.PathSuffix), status))
	}
	return infos, nil
}

// Move moves an object stored at sourcePath to destPath, removing the
// original object and replacing any object at destPath.
func (d *Driver) Move(ctx context.Context, sourcePath, destPath string) error {
	src := d.fullPath(sourcePath)
	dst := d.fullPath(destPath)

	if _, err := d.client.Stat(ctx, src); err != nil {
		return d.pathError(sourcePath, err)
	}

	if _, err := d.client.Stat(ctx, dst); err == nil {
		if err := d.Delete(ctx, destPath); err != nil {
			return err
		}
	} else if !errors.Is(err, client.ErrNotFound) {
		return err
	}

	resp, err := d.client.Mkdirs(ctx, path.Dir(dst), 0)
	if err != nil {
		return err
	}
	if err := client.DecodeBoolean(resp); err != nil {
		return err
	}

	resp, err = d.client.Rename(ctx, src, dst)
	if err != nil {
		return err
	}
	return client.DecodeBoolean(resp)
}

// Delete recursively deletes all objects stored at "path" and its subpaths.
func (d *Driver) Delete(ctx context.Context, subPath string) error {
	resp, err := d.client.Delete(ctx, d.fullPath(subPath), true)
	if err != nil {
		return err
	}
	if err := client.DecodeBoolean(resp); err != nil {
		if errors.Is(err, client.ErrFalseResult) {
			return PathNotFoundError{Path: subPath, DriverName: driverName}
		}
		return err
	}
	return nil
}

func (d *Driver) fullPath(subPath string) string {
	return path.Join(d.params.RootDirectory, subPath)
}

func (d *Driver) pathError(subPath string, err error) error {
	if errors.Is(err, client.ErrNotFound) {
		return PathNotFoundError{Path: subPath, DriverName: driverName}
	}
	return err
}

// FileInfo describes a stored object.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

func fileInfo(p string, status client.FileStatus) FileInfo {
	fi := FileInfo{
		Path:    p,
		IsDir:   status.IsDir(),
		ModTime: status.ModTime(),
	}
	if !fi.IsDir {
		fi.Size = status.Length
	}
	return fi
}

// PathNotFoundError is returned when operating on a nonexistent path.
type PathNotFoundError struct {
	Path       string
	DriverName string
}

func (err PathNotFoundError) Error() string {
	return fmt.Sprintf("%s: Path not found: %s", err.DriverName, err.Path)
}

// InvalidOffsetError is returned when attempting to read or write from an
// invalid offset.
type InvalidOffsetError struct {
	Path   string
	Offset int64
}

func (err InvalidOffsetError) Error() string {
	return fmt.Sprintf("%s: invalid offset: %d for path: %s", driverName, err.Offset, err.Path)
}
