package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
	"github.com/leruetkins/bold-nfs/internal/vfs"
	"github.com/leruetkins/bold-nfs/internal/vfs/memfs"
)

func newTestManager(t *testing.T) (*Manager, vfs.FS) {
	t.Helper()
	fsys := memfs.New()
	mgr, err := NewManager(fsys, time.Minute)
	require.NoError(t, err)
	return mgr, fsys
}

func TestRootFilehandleStable(t *testing.T) {
	mgr, _ := newTestManager(t)
	root1 := mgr.GetRootFilehandle()
	root2 := mgr.GetRootFilehandle()
	assert.Equal(t, root1.ID, root2.ID)
}

// TestOpenConfirmCloseLifecycle reproduces scenario S3: OPEN returns a
// stateid requiring confirmation, OPEN_CONFIRM advances it, CLOSE
// releases it, and a second CLOSE on the same stateid fails.
func TestOpenConfirmCloseLifecycle(t *testing.T) {
	mgr, _ := newTestManager(t)
	root := mgr.GetRootFilehandle()

	fh, cinfo, stateid, err := mgr.CreateFile(root.Path, "hello", 1, []byte("owner"), types.ShareAccessBoth, types.ShareDenyNone, nil)
	require.NoError(t, err)
	assert.NotEqual(t, [16]byte{}, fh.ID)
	assert.Equal(t, cinfo.Before+1, cinfo.After)
	assert.Equal(t, uint32(1), stateid.Seqid)

	confirmed, err := mgr.ConfirmOpen(stateid.Other, stateid.Seqid)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), confirmed.Seqid)

	require.NoError(t, mgr.CloseFile(confirmed.Other))

	err = mgr.CloseFile(confirmed.Other)
	require.Error(t, err)
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, types.NFS4ErrBadStateID, stateErr.Status)
}

// TestGuardedCreateCollision reproduces scenario S4: a directory named
// "x" exists, so an OPEN with GUARDED4 must be rejected by the handler
// layer before it ever reaches CreateFile. This test exercises the
// manager-level existence check the handler relies on.
func TestGuardedCreateCollision(t *testing.T) {
	mgr, fsys := newTestManager(t)
	root := mgr.GetRootFilehandle()
	require.NoError(t, fsys.CreateDir("/x"))

	assert.True(t, fsys.Exists(mgr.fs.Join(root.Path, "x")))
}

func TestExclusiveCreateRetryIsIdempotent(t *testing.T) {
	mgr, _ := newTestManager(t)
	root := mgr.GetRootFilehandle()

	verifier := uint64(0xdeadbeef)
	_, _, first, err := mgr.CreateFile(root.Path, "excl.txt", 1, []byte("owner"), types.ShareAccessBoth, types.ShareDenyNone, &verifier)
	require.NoError(t, err)

	_, _, second, err := mgr.CreateFile(root.Path, "excl.txt", 1, []byte("owner"), types.ShareAccessBoth, types.ShareDenyNone, &verifier)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFreshIDAfterRemoveAndRecreate(t *testing.T) {
	mgr, _ := newTestManager(t)
	root := mgr.GetRootFilehandle()

	fh1, err := mgr.GetFilehandleForPath(mgr.fs.Join(root.Path, "a.txt"))
	require.Error(t, err) // not created yet

	_, _, _, err = mgr.CreateFile(root.Path, "a.txt", 1, nil, types.ShareAccessBoth, types.ShareDenyNone, nil)
	require.NoError(t, err)

	fh1, err = mgr.GetFilehandleForPath(mgr.fs.Join(root.Path, "a.txt"))
	require.NoError(t, err)

	_, err = mgr.RemoveFile(root.Path, "a.txt")
	require.NoError(t, err)

	_, _, _, err = mgr.CreateFile(root.Path, "a.txt", 1, nil, types.ShareAccessBoth, types.ShareDenyNone, nil)
	require.NoError(t, err)

	fh2, err := mgr.GetFilehandleForPath(mgr.fs.Join(root.Path, "a.txt"))
	require.NoError(t, err)

	assert.NotEqual(t, fh1.ID, fh2.ID)
}

func TestDirChangeStrictlyIncreases(t *testing.T) {
	mgr, _ := newTestManager(t)
	root := mgr.GetRootFilehandle()

	before := mgr.changeValue(root)
	_, _, _, err := mgr.CreateFile(root.Path, "f1", 1, nil, types.ShareAccessBoth, types.ShareDenyNone, nil)
	require.NoError(t, err)
	afterCreate := mgr.changeValue(root)
	assert.Greater(t, afterCreate, before)

	_, err = mgr.RemoveFile(root.Path, "f1")
	require.NoError(t, err)
	afterRemove := mgr.changeValue(root)
	assert.Greater(t, afterRemove, afterCreate)
}

func TestStaleStateidFromPreviousEpoch(t *testing.T) {
	mgr, _ := newTestManager(t)
	other := mgr.generateStateidOther(stateTypeOpen)
	other[1] ^= 0xFF // corrupt the boot-epoch fragment

	_, err := mgr.ConfirmOpen(other, 1)
	require.Error(t, err)
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, types.NFS4ErrStaleStateID, stateErr.Status)
}
