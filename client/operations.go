package client

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/distribution/webhdfs/client/transport"
)

// OpenOptions tunes OPEN. Zero values leave the service defaults.
type OpenOptions struct {
	Offset     int64
	Length     int64
	BufferSize int
}

// CreateOptions tunes CREATE. Zero values leave the service defaults.
type CreateOptions struct {
	Overwrite   bool
	BlockSize   int64
	Replication int16
	Permission  os.FileMode
	BufferSize  int
}

func (c *Client) single(ctx context.Context, method, op, p string, q url.Values) (*Response, error) {
	return c.Do(ctx, newDescriptor(method, op, p, q))
}

func newDescriptor(method, op, p string, q url.Values) *transport.Descriptor {
	if q == nil {
		q = url.Values{}
	}
	q.Set("op", op)
	return &transport.Descriptor{
		Op:     op,
		Method: method,
		Path:   operationPath(p),
		Query:  q,
	}
}

func octal(perm os.FileMode) string {
	return strconv.FormatUint(uint64(perm.Perm()), 8)
}

func setPositive(q url.Values, key string, v int64) {
	if v > 0 {
		q.Set(key, strconv.FormatInt(v, 10))
	}
}

// GetHomeDirectory returns the home directory of the authenticated user.
//
//	GET /webhdfs/v1/?op=GETHOMEDIRECTORY
func (c *Client) GetHomeDirectory(ctx context.Context) (*Response, error) {
	return c.single(ctx, http.MethodGet, "GETHOMEDIRECTORY", "/", nil)
}

// Open streams the content of p into w.
//
//	GET /webhdfs/v1/<PATH>?op=OPEN[&offset=<LONG>][&length=<LONG>][&buffersize=<INT>]
func (c *Client) Open(ctx context.Context, p string, w io.Writer, opts OpenOptions) (*Response, error) {
	q := url.Values{}
	setPositive(q, "offset", opts.Offset)
	setPositive(q, "length", opts.Length)
	setPositive(q, "buffersize", int64(opts.BufferSize))

	d := newDescriptor(http.MethodGet, "OPEN", p, q)
	d.TwoPhase = true
	d.Sink = w
	return c.Do(ctx, d)
}

// GetContentSummary summarizes the directory tree at p.
//
//	GET /webhdfs/v1/<PATH>?op=GETCONTENTSUMMARY
func (c *Client) GetContentSummary(ctx context.Context, p string) (*Response, error) {
	return c.single(ctx, http.MethodGet, "GETCONTENTSUMMARY", p, nil)
}

// ListStatus lists the directory at p.
//
//	GET /webhdfs/v1/<PATH>?op=LISTSTATUS
func (c *Client) ListStatus(ctx context.Context, p string) (*Response, error) {
	return c.single(ctx, http.MethodGet, "LISTSTATUS", p, nil)
}

// GetFileStatus describes p.
//
//	GET /webhdfs/v1/<PATH>?op=GETFILESTATUS
func (c *Client) GetFileStatus(ctx context.Context, p string) (*Response, error) {
	return c.single(ctx, http.MethodGet, "GETFILESTATUS", p, nil)
}

// GetFileChecksum returns the checksum of the file at p. The service may
// redirect to a data node to compute it.
//
//	GET /webhdfs/v1/<PATH>?op=GETFILECHECKSUM
func (c *Client) GetFileChecksum(ctx context.Context, p string) (*Response, error) {
	d := newDescriptor(http.MethodGet, "GETFILECHECKSUM", p, nil)
	d.TwoPhase = true
	return c.Do(ctx, d)
}

// Create writes body to a new file at p. Body is closed.
//
//	PUT /webhdfs/v1/<PATH>?op=CREATE[&overwrite=<true|false>][&blocksize=<LONG>]
//	  [&replication=<SHORT>][&permission=<OCTAL>][&buffersize=<INT>]
func (c *Client) Create(ctx context.Context, p string, body transport.BodySource, opts CreateOptions) (*Response, error) {
	q := url.Values{"overwrite": []string{strconv.FormatBool(opts.Overwrite)}}
	setPositive(q, "blocksize", opts.BlockSize)
	setPositive(q, "replication", int64(opts.Replication))
	setPositive(q, "buffersize", int64(opts.BufferSize))
	if opts.Permission != 0 {
		q.Set("permission", octal(opts.Permission))
	}

	d := newDescriptor(http.MethodPut, "CREATE", p, q)
	d.TwoPhase = true
	d.Body = body
	return c.Do(ctx, d)
}

// Mkdirs creates p and any missing parents.
//
//	PUT /webhdfs/v1/<PATH>?op=MKDIRS[&permission=<OCTAL>]
func (c *Client) Mkdirs(ctx context.Context, p string, perm os.FileMode) (*Response, error) {
	q := url.Values{}
	if perm != 0 {
		q.Set("permission", octal(perm))
	}
	return c.single(ctx, http.MethodPut, "MKDIRS", p, q)
}

// CreateSymlink creates link pointing at target.
//
//	PUT /webhdfs/v1/<PATH>?op=CREATESYMLINK&destination=<PATH>[&createParent=<true|false>]
func (c *Client) CreateSymlink(ctx context.Context, target, link string, createParent bool) (*Response, error) {
	q := url.Values{
		"destination":  []string{target},
		"createParent": []string{strconv.FormatBool(createParent)},
	}
	return c.single(ctx, http.MethodPut, "CREATESYMLINK", link, q)
}

// Rename moves src to dst.
//
//	PUT /webhdfs/v1/<PATH>?op=RENAME&destination=<PATH>
func (c *Client) Rename(ctx context.Context, src, dst string) (*Response, error) {
	return c.single(ctx, http.MethodPut, "RENAME", src, url.Values{"destination": []string{dst}})
}

// SetPermission changes the permission bits of p.
//
//	PUT /webhdfs/v1/<PATH>?op=SETPERMISSION[&permission=<OCTAL>]
func (c *Client) SetPermission(ctx context.Context, p string, perm os.FileMode) (*Response, error) {
	return c.single(ctx, http.MethodPut, "SETPERMISSION", p, url.Values{"permission": []string{octal(perm)}})
}

// SetOwner changes the owner and group of p. Empty values are left
// unchanged.
//
//	PUT /webhdfs/v1/<PATH>?op=SETOWNER[&owner=<USER>][&group=<GROUP>]
func (c *Client) SetOwner(ctx context.Context, p, owner, group string) (*Response, error) {
	q := url.Values{}
	if owner != "" {
		q.Set("owner", owner)
	}
	if group != "" {
		q.Set("group", group)
	}
	return c.single(ctx, http.MethodPut, "SETOWNER", p, q)
}

// SetReplication changes the replication factor of the file at p.
//
//	PUT /webhdfs/v1/<PATH>?op=SETREPLICATION[&replication=<SHORT>]
func (c *Client) SetReplication(ctx context.Context, p string, replication int16) (*Response, error) {
	q := url.Values{"replication": []string{strconv.Itoa(int(replication))}}
	return c.single(ctx, http.MethodPut, "SETREPLICATION", p, q)
}

// SetTimes changes the modification and access times of p. A zero time is
// left unchanged.
//
//	PUT /webhdfs/v1/<PATH>?op=SETTIMES[&modificationtime=<TIME>][&accesstime=<TIME>]
func (c *Client) SetTimes(ctx context.Context, p string, mtime, atime time.Time) (*Response, error) {
	q := url.Values{
		"modificationtime": []string{millis(mtime)},
		"accesstime":       []string{millis(atime)},
	}
	return c.single(ctx, http.MethodPut, "SETTIMES", p, q)
}

func millis(t time.Time) string {
	if t.IsZero() {
		return "-1"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// Append adds body to the end of the file at p. Body is closed.
//
//	POST /webhdfs/v1/<PATH>?op=APPEND[&buffersize=<INT>]
func (c *Client) Append(ctx context.Context, p string, body transport.BodySource, bufferSize int) (*Response, error) {
	q := url.Values{}
	setPositive(q, "buffersize", int64(bufferSize))

	d := newDescriptor(http.MethodPost, "APPEND", p, q)
	d.TwoPhase = true
	d.Body = body
	return c.Do(ctx, d)
}

// Truncate shortens the file at p to newLength bytes.
//
//	POST /webhdfs/v1/<PATH>?op=TRUNCATE&newlength=<LONG>
func (c *Client) Truncate(ctx context.Context, p string, newLength int64) (*Response, error) {
	q := url.Values{"newlength": []string{strconv.FormatInt(newLength, 10)}}
	return c.single(ctx, http.MethodPost, "TRUNCATE", p, q)
}

// Delete removes p.
//
//	DELETE /webhdfs/v1/<PATH>?op=DELETE[&recursive=<true|false>]
func (c *Client) Delete(ctx context.Context, p string, recursive bool) (*Response, error) {
	q := url.Values{"recursive": []string{strconv.FormatBool(recursive)}}
	return c.single(ctx, http.MethodDelete, "DELETE", p, q)
}

// Stat returns the FileStatus of p. Missing paths match ErrNotFound.
func (c *Client) Stat(ctx context.Context, p string) (FileStatus, error) {
	resp, err := c.GetFileStatus(ctx, p)
	if err != nil {
		return FileStatus{}, err
	}
	return DecodeFileStatus(resp)
}

// List returns the entries of the directory at p.
func (c *Client) List(ctx context.Context, p string) ([]FileStatus, error) {
	resp, err := c.ListStatus(ctx, p)
	if err != nil {
		return nil, err
	}
	return DecodeFileStatuses(resp)
}
