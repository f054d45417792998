package hostctx

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/hostcomply/pkg/compliance"
	"golang.org/x/sys/unix"
)

func TestExecuteCommand(t *testing.T) {
	h := New()

	out, err := h.ExecuteCommand("echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	out, err = h.ExecuteCommand("echo oops >&2; exit 3")
	require.Error(t, err)
	assert.Equal(t, "oops\n", out)
	assert.ErrorIs(t, err, unix.Errno(3))
	assert.Equal(t, compliance.KindExecution, compliance.KindOf(err))
}

func TestExecuteCommandTimeout(t *testing.T) {
	h := New(WithCommandTimeout(50 * time.Millisecond))

	start := time.Now()
	_, err := h.ExecuteCommand("sleep 5")
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.ETIME)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestAlternateRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "etc", "hostname"), []byte("image\n"), 0644))

	h := New(WithRoot(root))
	assert.Equal(t, filepath.Join(root, "etc/hostname"), h.GetSpecialFilePath("/etc/hostname"))

	contents, err := h.GetFileContents("/etc/hostname")
	require.NoError(t, err)
	assert.Equal(t, "image\n", contents)

	_, err = h.GetFileContents("/etc/missing")
	assert.ErrorIs(t, err, unix.ENOENT)

	entries, err := h.GetFilesystemScanner().Entries()
	require.NoError(t, err)
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.Contains(t, paths, "/etc/hostname")
}

func TestDefaults(t *testing.T) {
	h := New()
	assert.Equal(t, "/etc/passwd", h.GetSpecialFilePath("/etc/passwd"))
	assert.NotNil(t, h.GetLogHandle())
	assert.NotNil(t, h.GetTelemetryHandle())
	assert.NotNil(t, h.GetFilesystemScanner())

	var _ compliance.Host = h
}
