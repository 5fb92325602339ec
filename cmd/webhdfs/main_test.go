package main

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/distribution/webhdfs/client"
	"github.com/distribution/webhdfs/testutil"
	"github.com/distribution/webhdfs/version"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, s *testutil.Server, extra string) string {
	t.Helper()

	doc := fmt.Sprintf(`version: 0.1
log:
  level: error
endpoint:
  url: %s
  user: alice
auth: pseudo
%s`, s.NameNode.URL, extra)

	p := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(p, []byte(doc), 0o600))
	return p
}

func execute(t *testing.T, config string, stdin io.Reader, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	if config != "" {
		args = append(args, "--config", config)
	}
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err != nil {
		t.Logf("webhdfs %s: %v\n%s", strings.Join(args, " "), err, errOut.String())
	}
	return out.String(), err
}

func writeLocal(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "local")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "", nil, "--version")
	require.NoError(t, err)
	require.Contains(t, out, version.Package())
	require.Contains(t, out, version.Version())
}

func TestConfigurationRequired(t *testing.T) {
	t.Setenv(configurationPathEnv, "")

	_, err := execute(t, "", nil, "home")
	require.Error(t, err)
	require.Contains(t, err.Error(), "configuration path unspecified")
}

func TestConfigurationFromEnvironment(t *testing.T) {
	s := testutil.NewServer(t)
	t.Setenv(configurationPathEnv, writeConfig(t, s, ""))

	out, err := execute(t, "", nil, "home")
	require.NoError(t, err)
	require.Equal(t, "/user/alice\n", out)
}

func TestUnsupportedFormatter(t *testing.T) {
	s := testutil.NewServer(t)
	config := writeConfig(t, s, "")
	t.Setenv("WEBHDFS_LOG_FORMATTER", "xml")

	_, err := execute(t, config, nil, "home")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported logging formatter")
	require.Empty(t, s.Requests())
}

func TestPutAndCat(t *testing.T) {
	s := testutil.NewServer(t)
	s.RequireAuth = true
	config := writeConfig(t, s, "http:\n  chunksize: 16\n")

	content := "Lorem ipsum dolor sit amet, consectetur adipiscing elit."
	_, err := execute(t, config, nil, "put", writeLocal(t, content), "/data/lorem.txt", "--permission", "640")
	require.NoError(t, err)

	stored, ok := s.File("/data/lorem.txt")
	require.True(t, ok)
	require.Equal(t, content, string(stored))
	require.Equal(t, "640", s.Permission("/data/lorem.txt"))

	out, err := execute(t, config, nil, "cat", "/data/lorem.txt")
	require.NoError(t, err)
	require.Equal(t, content, out)

	out, err = execute(t, config, nil, "cat", "/data/lorem.txt", "--offset", "6", "--length", "5")
	require.NoError(t, err)
	require.Equal(t, "ipsum", out)
}

func TestPutExisting(t *testing.T) {
	s := testutil.NewServer(t)
	s.PutFile("/data/f", []byte("old"))
	config := writeConfig(t, s, "")
	local := writeLocal(t, "new")

	_, err := execute(t, config, nil, "put", local, "/data/f")
	require.Error(t, err)

	var re *client.RemoteException
	require.True(t, errors.As(err, &re))
	require.Equal(t, client.ExceptionFileAlreadyExists, re.Exception)
	require.Equal(t, 403, re.StatusCode)

	stored, _ := s.File("/data/f")
	require.Equal(t, "old", string(stored))

	_, err = execute(t, config, nil, "put", "--overwrite", local, "/data/f")
	require.NoError(t, err)
	stored, _ = s.File("/data/f")
	require.Equal(t, "new", string(stored))
}

func TestPutAndAppendStandardInput(t *testing.T) {
	s := testutil.NewServer(t)
	config := writeConfig(t, s, "")

	_, err := execute(t, config, strings.NewReader("streamed "), "put", "-", "/logs/app.log")
	require.NoError(t, err)

	_, err = execute(t, config, strings.NewReader("and appended"), "append", "-", "/logs/app.log")
	require.NoError(t, err)

	_, err = execute(t, config, nil, "append", writeLocal(t, "!"), "/logs/app.log")
	require.NoError(t, err)

	stored, ok := s.File("/logs/app.log")
	require.True(t, ok)
	require.Equal(t, "streamed and appended!", string(stored))
}

func TestMetadataCommands(t *testing.T) {
	s := testutil.NewServer(t)
	config := writeConfig(t, s, "")
	s.PutFile("/src/a.txt", []byte("0123456789"))

	_, err := execute(t, config, nil, "mkdir", "/dst/nested", "--permission", "750")
	require.NoError(t, err)
	require.Equal(t, "750", s.Permission("/dst/nested"))

	_, err = execute(t, config, nil, "mv", "/src/a.txt", "/dst/nested/a.txt")
	require.NoError(t, err)
	require.False(t, s.Exists("/src/a.txt"))
	require.True(t, s.Exists("/dst/nested/a.txt"))

	out, err := execute(t, config, nil, "ls", "/dst/nested")
	require.NoError(t, err)
	require.Contains(t, out, "a.txt")
	require.Contains(t, out, " 10 ")

	out, err = execute(t, config, nil, "stat", "/dst/nested")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "d"), out)

	out, err = execute(t, config, nil, "du", "/dst")
	require.NoError(t, err)
	require.Equal(t, "2\t1\t10\t30\t/dst\n", out)

	sum := md5.Sum([]byte("0123456789"))
	out, err = execute(t, config, nil, "checksum", "/dst/nested/a.txt")
	require.NoError(t, err)
	require.Contains(t, out, hex.EncodeToString(sum[:]))

	_, err = execute(t, config, nil, "chmod", "600", "/dst/nested/a.txt")
	require.NoError(t, err)
	require.Equal(t, "600", s.Permission("/dst/nested/a.txt"))

	_, err = execute(t, config, nil, "chown", "hdfs:hadoop", "/dst/nested/a.txt")
	require.NoError(t, err)

	_, err = execute(t, config, nil, "setrep", "2", "/dst/nested/a.txt")
	require.NoError(t, err)

	_, err = execute(t, config, nil, "touch", "/dst/nested/a.txt", "--time", "2024-01-02T03:04:05Z")
	require.NoError(t, err)

	_, err = execute(t, config, nil, "truncate", "/dst/nested/a.txt", "4")
	require.NoError(t, err)
	stored, _ := s.File("/dst/nested/a.txt")
	require.Equal(t, "0123", string(stored))

	_, err = execute(t, config, nil, "ln", "/dst/nested/a.txt", "/links/a", "--parents")
	require.NoError(t, err)
	require.True(t, s.Exists("/links/a"))

	_, err = execute(t, config, nil, "rm", "/dst")
	require.Error(t, err)
	require.True(t, s.Exists("/dst"))

	_, err = execute(t, config, nil, "rm", "--recursive", "/dst")
	require.NoError(t, err)
	require.False(t, s.Exists("/dst/nested/a.txt"))

	var names []string
	for _, req := range s.Requests() {
		names = append(names, req.Op())
	}
	require.Contains(t, names, "SETOWNER")
	require.Contains(t, names, "SETTIMES")
	require.Contains(t, names, "SETREPLICATION")
}

func TestMissingPath(t *testing.T) {
	s := testutil.NewServer(t)
	config := writeConfig(t, s, "")

	_, err := execute(t, config, nil, "stat", "/nope")
	require.Error(t, err)
	require.True(t, errors.Is(err, client.ErrNotFound))

	_, err = execute(t, config, nil, "rm", "/nope")
	require.True(t, errors.Is(err, client.ErrFalseResult))
}

func TestHealth(t *testing.T) {
	s := testutil.NewServer(t)
	s.Mkdir("/data")
	config := writeConfig(t, s, "")

	out, err := execute(t, config, nil, "health", "/data")
	require.NoError(t, err)
	require.Equal(t, "{}\n", out)

	out, err = execute(t, config, nil, "health", "/data", "/missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 of 3 health checks failed")
	require.Contains(t, out, `"path:/missing"`)
}

func TestInvalidArguments(t *testing.T) {
	s := testutil.NewServer(t)
	s.PutFile("/f", []byte("x"))
	config := writeConfig(t, s, "")

	for _, args := range [][]string{
		{"chmod", "999", "/f"},
		{"setrep", "many", "/f"},
		{"truncate", "/f", "-x"},
		{"touch", "/f", "--time", "yesterday"},
		{"ls"},
	} {
		_, err := execute(t, config, nil, args...)
		require.Error(t, err, "%v", args)
	}
	require.Empty(t, s.Requests())
}
