package osfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leruetkins/bold-nfs/internal/vfs"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fsys, err := New(dir)
	require.NoError(t, err)
	return fsys
}

func TestRootExistsAndMetadata(t *testing.T) {
	fsys := newTestFS(t)
	assert.Equal(t, vfs.Path("/"), fsys.Root())

	meta, err := fsys.Metadata("/")
	require.NoError(t, err)
	assert.Equal(t, vfs.TypeDirectory, meta.Type)
}

func TestCreateFileAndReadDir(t *testing.T) {
	fsys := newTestFS(t)

	w, err := fsys.CreateFile("/hello.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello, world!\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, fsys.CreateDir("/dir1"))

	entries, err := fsys.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "dir1", entries[0].Name)
	assert.Equal(t, "hello.txt", entries[1].Name)
	assert.Equal(t, vfs.TypeDirectory, entries[0].Meta.Type)
	assert.Equal(t, vfs.TypeRegular, entries[1].Meta.Type)
	assert.Equal(t, uint64(14), entries[1].Meta.Size)
}

func TestPathEscapeRejected(t *testing.T) {
	fsys := newTestFS(t)
	assert.False(t, fsys.Exists("/../../etc/passwd"))
	_, err := fsys.Metadata("/../../etc/passwd")
	require.Error(t, err)
}

func TestRemoveAndRename(t *testing.T) {
	fsys := newTestFS(t)
	w, err := fsys.CreateFile("/a.txt")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, fsys.Rename("/a.txt", "/b.txt"))
	assert.False(t, fsys.Exists("/a.txt"))
	assert.True(t, fsys.Exists("/b.txt"))

	require.NoError(t, fsys.Remove("/b.txt"))
	assert.False(t, fsys.Exists("/b.txt"))
}

func TestSetLenAndPermissions(t *testing.T) {
	fsys := newTestFS(t)
	w, err := fsys.CreateFile("/f.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, fsys.SetLen("/f.txt", 4))
	meta, err := fsys.Metadata("/f.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), meta.Size)

	require.NoError(t, fsys.SetPermissions("/f.txt", 0o600))
	info, err := os.Stat(filepath.Join(fsys.hostRoot, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
