package memfs

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leruetkins/bold-nfs/internal/vfs"
)

func TestEmptyRootReadDir(t *testing.T) {
	fsys := New()
	entries, err := fsys.ReadDir("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateFileWriteReadRoundtrip(t *testing.T) {
	fsys := New()
	w, err := fsys.CreateFile("/hello.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello, world!\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := fsys.OpenFile("/hello.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello, world!\n", string(data))
}

func TestCreateDirAndSortedReadDir(t *testing.T) {
	fsys := New()
	require.NoError(t, fsys.CreateDir("/dir1"))
	w, err := fsys.CreateFile("/file1.txt")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	entries, err := fsys.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "dir1", entries[0].Name)
	assert.Equal(t, vfs.TypeDirectory, entries[0].Meta.Type)
	assert.Equal(t, "file1.txt", entries[1].Name)
	assert.Equal(t, vfs.TypeRegular, entries[1].Meta.Type)
}

func TestRemoveNonEmptyDirFails(t *testing.T) {
	fsys := New()
	require.NoError(t, fsys.CreateDir("/dir1"))
	w, err := fsys.CreateFile("/dir1/f.txt")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	err = fsys.Remove("/dir1")
	require.Error(t, err)
	var vErr *vfs.Error
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, vfs.ErrNotEmpty, vErr.Code)
}

func TestRenameAndSetLen(t *testing.T) {
	fsys := New()
	w, err := fsys.CreateFile("/a.txt")
	require.NoError(t, err)
	_, _ = w.Write([]byte("0123456789"))
	require.NoError(t, w.Close())

	require.NoError(t, fsys.Rename("/a.txt", "/b.txt"))
	assert.False(t, fsys.Exists("/a.txt"))
	assert.True(t, fsys.Exists("/b.txt"))

	require.NoError(t, fsys.SetLen("/b.txt", 4))
	meta, err := fsys.Metadata("/b.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), meta.Size)
}
