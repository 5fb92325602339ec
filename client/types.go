package client

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// FileType enumerates FileStatus types.
type FileType string

const (
	FileTypeFile      FileType = "FILE"
	FileTypeDirectory FileType = "DIRECTORY"
	FileTypeSymlink   FileType = "SYMLINK"
)

// FileStatus represents HDFS FileStatus (FileSystem.getStatus())
// Example:
//
//	{
//	  "FileStatus":
//	  {
//	    "accessTime"      : 0,
//	    "blockSize"       : 0,
//	    "group"           : "supergroup",
//	    "length"          : 0,
//	    "modificationTime": 1320173277227,
//	    "owner"           : "webuser",
//	    "pathSuffix"      : "",
//	    "permission"      : "777",
//	    "replication"     : 0,
//	    "type"            : "DIRECTORY"
//	  }
//	}
type FileStatus struct {
	AccessTime       int64    `json:"accessTime"`
	BlockSize        int64    `json:"blockSize"`
	ChildrenNum      int64    `json:"childrenNum,omitempty"`
	FileID           int64    `json:"fileId,omitempty"`
	Group            string   `json:"group"`
	Length           int64    `json:"length"`
	ModificationTime int64    `json:"modificationTime"`
	Owner            string   `json:"owner"`
	PathSuffix       string   `json:"pathSuffix"`
	Permission       string   `json:"permission"`
	Replication      int64    `json:"replication"`
	StoragePolicy    int64    `json:"storagePolicy,omitempty"`
	Symlink          string   `json:"symlink,omitempty"`
	Type             FileType `json:"type"`
}

// IsDir reports whether the status describes a directory.
func (fs FileStatus) IsDir() bool {
	return fs.Type == FileTypeDirectory
}

// ModTime returns the modification time.
func (fs FileStatus) ModTime() time.Time {
	return time.UnixMilli(fs.ModificationTime)
}

// Mode returns the permission bits, with os.ModeDir or os.ModeSymlink set
// by type.
func (fs FileStatus) Mode() os.FileMode {
	perm, err := strconv.ParseUint(fs.Permission, 8, 32)
	if err != nil {
		perm = 0
	}
	mode := os.FileMode(perm) & os.ModePerm
	switch fs.Type {
	case FileTypeDirectory:
		mode |= os.ModeDir
	case FileTypeSymlink:
		mode |= os.ModeSymlink
	}
	return mode
}

// FileStatuses is the container returned by LISTSTATUS.
type FileStatuses struct {
	FileStatus []FileStatus `json:"FileStatus"`
}

// ContentSummary is the result of GETCONTENTSUMMARY.
type ContentSummary struct {
	DirectoryCount int64 `json:"directoryCount"`
	FileCount      int64 `json:"fileCount"`
	Length         int64 `json:"length"`
	Quota          int64 `json:"quota"`
	SpaceConsumed  int64 `json:"spaceConsumed"`
	SpaceQuota     int64 `json:"spaceQuota"`
}

// FileChecksum is the result of GETFILECHECKSUM.
type FileChecksum struct {
	Algorithm string `json:"algorithm"`
	Bytes     string `json:"bytes"`
	Length    int64  `json:"length"`
}

func (c FileChecksum) String() string {
	return fmt.Sprintf("%s:%s", c.Algorithm, c.Bytes)
}

// decodeResult maps error statuses, then decodes the body into v.
func decodeResult(resp *Response, v interface{}) error {
	if err := resp.Err(); err != nil {
		return err
	}
	return resp.Decode(v)
}

// DecodeFileStatus extracts the FileStatus of a GETFILESTATUS response.
func DecodeFileStatus(resp *Response) (FileStatus, error) {
	var v struct {
		FileStatus FileStatus `json:"FileStatus"`
	}
	if err := decodeResult(resp, &v); err != nil {
		return FileStatus{}, err
	}
	return v.FileStatus, nil
}

// DecodeFileStatuses extracts the entries of a LISTSTATUS response.
func DecodeFileStatuses(resp *Response) ([]FileStatus, error) {
	var v struct {
		FileStatuses FileStatuses `json:"FileStatuses"`
	}
	if err := decodeResult(resp, &v); err != nil {
		return nil, err
	}
	return v.FileStatuses.FileStatus, nil
}

// DecodeContentSummary extracts the ContentSummary of a GETCONTENTSUMMARY
// response.
func DecodeContentSummary(resp *Response) (ContentSummary, error) {
	var v struct {
		ContentSummary ContentSummary `json:"ContentSummary"`
	}
	if err := decodeResult(resp, &v); err != nil {
		return ContentSummary{}, err
	}
	return v.ContentSummary, nil
}

// DecodeFileChecksum extracts the FileChecksum of a GETFILECHECKSUM
// response.
func DecodeFileChecksum(resp *Response) (FileChecksum, error) {
	var v struct {
		FileChecksum FileChecksum `json:"FileChecksum"`
	}
	if err := decodeResult(resp, &v); err != nil {
		return FileChecksum{}, err
	}
	return v.FileChecksum, nil
}

// DecodePath extracts the path of a GETHOMEDIRECTORY response.
func DecodePath(resp *Response) (string, error) {
	var v struct {
		Path string `json:"Path"`
	}
	if err := decodeResult(resp, &v); err != nil {
		return "", err
	}
	return v.Path, nil
}

// DecodeBoolean checks a {"boolean": ...} response. A false result is
// reported as ErrFalseResult.
func DecodeBoolean(resp *Response) error {
	var v struct {
		Boolean bool `json:"boolean"`
	}
	if err := decodeResult(resp, &v); err != nil {
		return err
	}
	if !v.Boolean {
		return ErrFalseResult
	}
	return nil
}
