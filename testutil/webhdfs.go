package testutil

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const (
	// AuthCookieName mirrors the cookie issued by the service.
	AuthCookieName = "hadoop.auth"

	webhdfsPrefix = "/webhdfs/v1"
)

// Request is a request received by the fake service.
type Request struct {
	// Node is "namenode" or "datanode".
	Node   string
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	// ContentLength is the declared request body length.
	ContentLength int64
}

// Op returns the op query parameter.
func (r Request) Op() string {
	return r.Query.Get("op")
}

type inode struct {
	dir         bool
	data        []byte
	permission  string
	owner       string
	group       string
	replication int
	blockSize   int64
	mtime       int64
	atime       int64
	target      string
}

// Server is an in-memory WebHDFS service made of a name node that answers
// metadata operations and redirects data operations, and a data node that
// receives and serves file contents.
type Server struct {
	NameNode *httptest.Server
	DataNode *httptest.Server

	// RequireAuth rejects name node requests other than the probe unless
	// they carry a live hadoop.auth cookie or the configured bearer token.
	RequireAuth bool

	// BearerToken is accepted in place of a cookie when non-empty.
	BearerToken string

	// TokenTTL is the lifetime of issued cookies.
	TokenTTL time.Duration

	// Now is the service clock.
	Now func() time.Time

	// Log receives an access log line per request.
	Log io.Writer

	mu       sync.Mutex
	nodes    map[string]*inode
	requests []Request
	probes   int
	issued   map[string]time.Time
}

// NewServer starts a fake service that is closed when the test finishes.
func NewServer(t testing.TB) *Server {
	s := &Server{
		TokenTTL: 10 * time.Hour,
		Now:      time.Now,
		Log:      io.Discard,
		nodes:    map[string]*inode{"/": {dir: true, permission: "755", owner: "hdfs", group: "supergroup"}},
		issued:   make(map[string]time.Time),
	}

	nn := mux.NewRouter()
	nn.PathPrefix(webhdfsPrefix).Methods(http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete).HandlerFunc(s.serveNameNode)

	dn := mux.NewRouter()
	dn.PathPrefix(webhdfsPrefix).Methods(http.MethodGet, http.MethodPut, http.MethodPost).HandlerFunc(s.serveDataNode)

	s.NameNode = httptest.NewServer(handlers.LoggingHandler(logWriter{s}, nn))
	s.DataNode = httptest.NewServer(handlers.LoggingHandler(logWriter{s}, dn))

	if t != nil {
		t.Cleanup(s.Close)
	}
	return s
}

// logWriter defers to Server.Log, which tests may replace after start.
type logWriter struct{ s *Server }

func (w logWriter) Write(p []byte) (int, error) {
	return w.s.Log.Write(p)
}

// URL is the name node service root.
func (s *Server) URL() *url.URL {
	u, _ := url.Parse(s.NameNode.URL)
	return u
}

// Close shuts down both nodes.
func (s *Server) Close() {
	s.NameNode.Close()
	s.DataNode.Close()
}

// Requests returns every request received so far, in order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Probes counts the authentication probes served.
func (s *Server) Probes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probes
}

// PutFile stores data at p, creating parent directories.
func (s *Server) PutFile(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirsLocked(path.Dir(p))
	s.nodes[p] = s.newFileLocked(append([]byte(nil), data...))
}

// Mkdir creates p and its parents.
func (s *Server) Mkdir(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirsLocked(p)
}

// File returns the contents stored at p.
func (s *Server) File(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[p]
	if !ok || n.dir {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}

// Exists reports whether p is present.
func (s *Server) Exists(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[p]
	return ok
}

// Permission returns the octal permission string of p.
func (s *Server) Permission(p string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[p]; ok {
		return n.permission
	}
	return ""
}

func (s *Server) record(node string, r *http.Request) Request {
	body, _ := io.ReadAll(r.Body)
	req := Request{
		Node:   node,
		Method: r.Method,
		Path:   hdfsPath(r),
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,

		ContentLength: r.ContentLength,
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return req
}

func hdfsPath(r *http.Request) string {
	p := strings.TrimPrefix(r.URL.Path, webhdfsPrefix)
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func (s *Server) serveNameNode(w http.ResponseWriter, r *http.Request) {
	req := s.record("namenode", r)
	op := strings.ToUpper(req.Op())

	if op == "GETHOMEDIRECTORY" {
		s.issueCookie(w, req)
	} else if s.RequireAuth && !s.authorized(r) {
		remoteException(w, http.StatusUnauthorized, "SecurityException", "java.lang.SecurityException", "Failed to obtain user group information")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch op {
	case "GETHOMEDIRECTORY":
		user := req.Query.Get("user.name")
		if user == "" {
			user = "webuser"
		}
		writeJSON(w, http.StatusOK, map[string]string{"Path": "/user/" + user})
	case "GETFILESTATUS":
		n, ok := s.nodes[req.Path]
		if !ok {
			fileNotFound(w, req.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"FileStatus": status(n, "")})
	case "LISTSTATUS":
		n, ok := s.nodes[req.Path]
		if !ok {
			fileNotFound(w, req.Path)
			return
		}
		statuses := []map[string]interface{}{}
		if !n.dir {
			statuses = append(statuses, status(n, ""))
		} else {
			for _, child := range s.childrenLocked(req.Path) {
				statuses = append(statuses, status(s.nodes[child], path.Base(child)))
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"FileStatuses": map[string]interface{}{"FileStatus": statuses},
		})
	case "GETCONTENTSUMMARY":
		if _, ok := s.nodes[req.Path]; !ok {
			fileNotFound(w, req.Path)
			return
		}
		var dirs, files, length int64
		for p, n := range s.nodes {
			if !within(p, req.Path) {
				continue
			}
			if n.dir {
				dirs++
			} else {
				files++
				length += int64(len(n.data))
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"ContentSummary": map[string]int64{
			"directoryCount": dirs,
			"fileCount":      files,
			"length":         length,
			"quota":          -1,
			"spaceConsumed":  length * 3,
			"spaceQuota":     -1,
		}})
	case "GETFILECHECKSUM":
		n, ok := s.nodes[req.Path]
		if !ok || n.dir {
			fileNotFound(w, req.Path)
			return
		}
		sum := md5.Sum(n.data)
		writeJSON(w, http.StatusOK, map[string]interface{}{"FileChecksum": map[string]interface{}{
			"algorithm": "MD5-of-0MD5-of-512CRC32C",
			"bytes":     hex.EncodeToString(sum[:]),
			"length":    28,
		}})
	case "MKDIRS":
		if n, ok := s.nodes[req.Path]; ok && !n.dir {
			remoteException(w, http.StatusForbidden, "FileAlreadyExistsException", "org.apache.hadoop.fs.FileAlreadyExistsException", "Path is not a directory: "+req.Path)
			return
		}
		s.mkdirsLocked(req.Path)
		if perm := req.Query.Get("permission"); perm != "" {
			s.nodes[req.Path].permission = perm
		}
		writeBoolean(w, true)
	case "CREATESYMLINK":
		if _, ok := s.nodes[req.Path]; ok {
			remoteException(w, http.StatusForbidden, "FileAlreadyExistsException", "org.apache.hadoop.fs.FileAlreadyExistsException", "Path exists: "+req.Path)
			return
		}
		if _, ok := s.nodes[path.Dir(req.Path)]; !ok {
			if req.Query.Get("createParent") != "true" {
				fileNotFound(w, path.Dir(req.Path))
				return
			}
			s.mkdirsLocked(path.Dir(req.Path))
		}
		n := s.newFileLocked(nil)
		n.target = req.Query.Get("destination")
		s.nodes[req.Path] = n
		w.WriteHeader(http.StatusOK)
	case "RENAME":
		dst := req.Query.Get("destination")
		if _, ok := s.nodes[req.Path]; !ok {
			writeBoolean(w, false)
			return
		}
		if _, ok := s.nodes[dst]; ok {
			writeBoolean(w, false)
			return
		}
		moved := make(map[string]*inode)
		for p, n := range s.nodes {
			if within(p, req.Path) {
				moved[dst+strings.TrimPrefix(p, req.Path)] = n
				delete(s.nodes, p)
			}
		}
		s.mkdirsLocked(path.Dir(dst))
		for p, n := range moved {
			s.nodes[p] = n
		}
		writeBoolean(w, true)
	case "SETPERMISSION", "SETOWNER", "SETREPLICATION", "SETTIMES":
		n, ok := s.nodes[req.Path]
		if !ok {
			fileNotFound(w, req.Path)
			return
		}
		switch op {
		case "SETPERMISSION":
			n.permission = req.Query.Get("permission")
		case "SETOWNER":
			if owner := req.Query.Get("owner"); owner != "" {
				n.owner = owner
			}
			if group := req.Query.Get("group"); group != "" {
				n.group = group
			}
		case "SETREPLICATION":
			if n.dir {
				writeBoolean(w, false)
				return
			}
			n.replication, _ = strconv.Atoi(req.Query.Get("replication"))
			writeBoolean(w, true)
			return
		case "SETTIMES":
			if v, err := strconv.ParseInt(req.Query.Get("modificationtime"), 10, 64); err == nil && v >= 0 {
				n.mtime = v
			}
			if v, err := strconv.ParseInt(req.Query.Get("accesstime"), 10, 64); err == nil && v >= 0 {
				n.atime = v
			}
		}
		w.WriteHeader(http.StatusOK)
	case "TRUNCATE":
		n, ok := s.nodes[req.Path]
		if !ok || n.dir {
			fileNotFound(w, req.Path)
			return
		}
		size, err := strconv.ParseInt(req.Query.Get("newlength"), 10, 64)
		if err != nil || size < 0 || size > int64(len(n.data)) {
			remoteException(w, http.StatusBadRequest, "HadoopIllegalArgumentException", "org.apache.hadoop.HadoopIllegalArgumentException", "Cannot truncate to a larger file size")
			return
		}
		n.data = n.data[:size]
		writeBoolean(w, true)
	case "DELETE":
		n, ok := s.nodes[req.Path]
		if !ok {
			writeBoolean(w, false)
			return
		}
		if n.dir && len(s.childrenLocked(req.Path)) > 0 && req.Query.Get("recursive") != "true" {
			remoteException(w, http.StatusForbidden, "PathIsNotEmptyDirectoryException", "org.apache.hadoop.fs.PathIsNotEmptyDirectoryException", req.Path+" is non empty': Directory is not empty")
			return
		}
		for p := range s.nodes {
			if within(p, req.Path) && p != "/" {
				delete(s.nodes, p)
			}
		}
		writeBoolean(w, true)
	case "CREATE":
		if n, ok := s.nodes[req.Path]; ok && (n.dir || req.Query.Get("overwrite") != "true") {
			remoteException(w, http.StatusForbidden, "FileAlreadyExistsException", "org.apache.hadoop.fs.FileAlreadyExistsException", req.Path+" for client 127.0.0.1 already exists")
			return
		}
		s.redirect(w, req)
	case "APPEND", "OPEN":
		n, ok := s.nodes[req.Path]
		if !ok || n.dir {
			fileNotFound(w, req.Path)
			return
		}
		s.redirect(w, req)
	default:
		remoteException(w, http.StatusBadRequest, "IllegalArgumentException", "java.lang.IllegalArgumentException", "Invalid value for webhdfs parameter \"op\": "+req.Op())
	}
}

func (s *Server) serveDataNode(w http.ResponseWriter, r *http.Request) {
	req := s.record("datanode", r)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch strings.ToUpper(req.Op()) {
	case "CREATE":
		s.mkdirsLocked(path.Dir(req.Path))
		n := s.newFileLocked(req.Body)
		if perm := req.Query.Get("permission"); perm != "" {
			n.permission = perm
		}
		if rep, err := strconv.Atoi(req.Query.Get("replication")); err == nil && rep > 0 {
			n.replication = rep
		}
		s.nodes[req.Path] = n
		w.Header().Set("Location", "hdfs://"+s.NameNode.Listener.Addr().String()+req.Path)
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusCreated)
	case "APPEND":
		n, ok := s.nodes[req.Path]
		if !ok {
			fileNotFound(w, req.Path)
			return
		}
		n.data = append(n.data, req.Body...)
		n.mtime = s.Now().UnixMilli()
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
	case "OPEN":
		n, ok := s.nodes[req.Path]
		if !ok {
			fileNotFound(w, req.Path)
			return
		}
		data := n.data
		if off, err := strconv.ParseInt(req.Query.Get("offset"), 10, 64); err == nil && off > 0 {
			if off > int64(len(data)) {
				off = int64(len(data))
			}
			data = data[off:]
		}
		if l, err := strconv.ParseInt(req.Query.Get("length"), 10, 64); err == nil && l >= 0 && l < int64(len(data)) {
			data = data[:l]
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		remoteException(w, http.StatusBadRequest, "IllegalArgumentException", "java.lang.IllegalArgumentException", "Invalid operation "+req.Op())
	}
}

// redirect answers a data operation with a 307 to the data node. The
// original query is carried over, minus user.name.
func (s *Server) redirect(w http.ResponseWriter, req Request) {
	q := url.Values{}
	for k, v := range req.Query {
		if k != "user.name" {
			q[k] = v
		}
	}
	q.Set("namenoderpcaddress", s.NameNode.Listener.Addr().String())

	u, _ := url.Parse(s.DataNode.URL)
	u.Path = webhdfsPrefix + req.Path
	u.RawQuery = q.Encode()

	w.Header().Set("Location", u.String())
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusTemporaryRedirect)
}

func (s *Server) issueCookie(w http.ResponseWriter, req Request) {
	user := req.Query.Get("user.name")
	if user == "" {
		user = "webuser"
	}

	s.mu.Lock()
	s.probes++
	n := s.probes
	expires := s.Now().Add(s.TokenTTL)
	value := fmt.Sprintf("u=%s&p=%s&t=simple&e=%d&s=sig%d", user, user, expires.UnixMilli(), n)
	s.issued[value] = expires
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: AuthCookieName, Value: value, Path: "/", HttpOnly: true})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.BearerToken != "" && r.Header.Get("Authorization") == "Bearer "+s.BearerToken {
		return true
	}
	c, err := r.Cookie(AuthCookieName)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expires, ok := s.issued[c.Value]
	return ok && s.Now().Before(expires)
}

func (s *Server) newFileLocked(data []byte) *inode {
	now := s.Now().UnixMilli()
	return &inode{
		data:        data,
		permission:  "644",
		owner:       "webuser",
		group:       "supergroup",
		replication: 3,
		blockSize:   128 << 20,
		mtime:       now,
		atime:       now,
	}
}

func (s *Server) mkdirsLocked(p string) {
	for ; p != "/" && p != "."; p = path.Dir(p) {
		if _, ok := s.nodes[p]; ok {
			continue
		}
		s.nodes[p] = &inode{dir: true, permission: "755", owner: "webuser", group: "supergroup", mtime: s.Now().UnixMilli()}
	}
}

func (s *Server) childrenLocked(dir string) []string {
	var children []string
	for p := range s.nodes {
		if p != dir && path.Dir(p) == dir {
			children = append(children, p)
		}
	}
	sort.Strings(children)
	return children
}

func within(p, root string) bool {
	if root == "/" {
		return true
	}
	return p == root || strings.HasPrefix(p, root+"/")
}

func status(n *inode, suffix string) map[string]interface{} {
	st := map[string]interface{}{
		"accessTime":       n.atime,
		"blockSize":        n.blockSize,
		"group":            n.group,
		"length":           len(n.data),
		"modificationTime": n.mtime,
		"owner":            n.owner,
		"pathSuffix":       suffix,
		"permission":       n.permission,
		"replication":      n.replication,
		"type":             "FILE",
	}
	switch {
	case n.dir:
		st["type"] = "DIRECTORY"
		st["length"] = 0
		st["replication"] = 0
		st["blockSize"] = 0
	case n.target != "":
		st["type"] = "SYMLINK"
		st["symlink"] = n.target
	}
	return st
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(v)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}

func writeBoolean(w http.ResponseWriter, b bool) {
	writeJSON(w, http.StatusOK, map[string]bool{"boolean": b})
}

func fileNotFound(w http.ResponseWriter, p string) {
	remoteException(w, http.StatusNotFound, "FileNotFoundException", "java.io.FileNotFoundException", "File does not exist: "+p)
}

func remoteException(w http.ResponseWriter, code int, exception, javaClassName, message string) {
	writeJSON(w, code, map[string]interface{}{"RemoteException": map[string]string{
		"exception":     exception,
		"javaClassName": javaClassName,
		"message":       message,
	}})
}
