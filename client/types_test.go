package client

import (
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFileStatus(t *testing.T) {
	resp := newResponse(http.StatusOK, "application/json", `{"FileStatus":{"pathSuffix":"temporary","type":"DIRECTORY","length":0,"owner":"test","group":"supergroup","permission":"755","accessTime":0,"modificationTime":1352084683097,"blockSize":0,"replication":0}}`)

	fs, err := DecodeFileStatus(resp)
	require.NoError(t, err)

	assert.Equal(t, "temporary", fs.PathSuffix)
	assert.Equal(t, FileTypeDirectory, fs.Type)
	assert.True(t, fs.IsDir())
	assert.Equal(t, "test", fs.Owner)
	assert.Equal(t, "supergroup", fs.Group)
	assert.Equal(t, int64(1352084683097), fs.ModificationTime)
	assert.Equal(t, time.UnixMilli(1352084683097), fs.ModTime())
	assert.Equal(t, os.ModeDir|0o755, fs.Mode())
}

func TestDecodeContentSummary(t *testing.T) {
	resp := newResponse(http.StatusOK, "application/json", `{"ContentSummary":{"directoryCount":2,"fileCount":1,"length":139372,"quota":-1,"spaceConsumed":139372,"spaceQuota":-1}}`)

	cs, err := DecodeContentSummary(resp)
	require.NoError(t, err)
	assert.Equal(t, ContentSummary{
		DirectoryCount: 2,
		FileCount:      1,
		Length:         139372,
		Quota:          -1,
		SpaceConsumed:  139372,
		SpaceQuota:     -1,
	}, cs)
}

func TestDecodeFileStatuses(t *testing.T) {
	resp := newResponse(http.StatusOK, "application/json", `{"FileStatuses":{"FileStatus":[
		{"pathSuffix":"a.txt","type":"FILE","length":24930,"permission":"644","replication":3},
		{"pathSuffix":"link","type":"SYMLINK","symlink":"/tmp/a.txt","permission":"777"}
	]}}`)

	entries, err := DecodeFileStatuses(resp)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(24930), entries[0].Length)
	assert.Equal(t, os.FileMode(0o644), entries[0].Mode())
	assert.Equal(t, "/tmp/a.txt", entries[1].Symlink)
	assert.Equal(t, os.ModeSymlink|0o777, entries[1].Mode())
}

func TestDecodeFileChecksum(t *testing.T) {
	resp := newResponse(http.StatusOK, "application/json", `{"FileChecksum":{"algorithm":"MD5-of-1MD5-of-512CRC32","bytes":"eadb10de24aa315748930df6e185c0d","length":28}}`)

	sum, err := DecodeFileChecksum(resp)
	require.NoError(t, err)
	assert.Equal(t, int64(28), sum.Length)
	assert.Equal(t, "MD5-of-1MD5-of-512CRC32:eadb10de24aa315748930df6e185c0d", sum.String())
}

func TestDecodeBoolean(t *testing.T) {
	assert.NoError(t, DecodeBoolean(newResponse(http.StatusOK, "application/json", `{"boolean":true}`)))
	assert.ErrorIs(t, DecodeBoolean(newResponse(http.StatusOK, "application/json", `{"boolean":false}`)), ErrFalseResult)
}

func TestDecodeMapsErrorStatus(t *testing.T) {
	resp := newResponse(http.StatusNotFound, "application/json", `{"RemoteException":{"exception":"FileNotFoundException","javaClassName":"java.io.FileNotFoundException","message":"File does not exist: /nope"}}`)

	_, err := DecodeFileStatus(resp)
	assert.ErrorIs(t, err, ErrNotFound)

	err = DecodeBoolean(resp)
	var re *RemoteException
	assert.ErrorAs(t, err, &re)
}

func TestOperationPath(t *testing.T) {
	assert.Equal(t, "/webhdfs/v1/", operationPath("/"))
	assert.Equal(t, "/webhdfs/v1/user/alice", operationPath("user/alice"))
	assert.Equal(t, "/webhdfs/v1/dir/a%20b%3F/c%25d", operationPath("/dir/a b?/c%d"))
}
