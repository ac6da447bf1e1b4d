package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
)

func createTestFile(t *testing.T, mgr *Manager, name string) *Filehandle {
	t.Helper()
	root := mgr.GetRootFilehandle()
	fh, _, _, err := mgr.CreateFile(root.Path, name, 1, []byte("creator"), types.ShareAccessBoth, types.ShareDenyNone, nil)
	require.NoError(t, err)
	return fh
}

func TestLockNew_SameOwnerNeverConflictsWithItself(t *testing.T) {
	mgr, _ := newTestManager(t)
	fh := createTestFile(t, mgr, "f.txt")

	first, denied, err := mgr.LockNew(fh, 1, []byte("owner-a"), types.WriteLT, 0, 50)
	require.NoError(t, err)
	require.Nil(t, denied)

	second, denied, err := mgr.LockNew(fh, 1, []byte("owner-a"), types.WriteLT, 25, 25)
	require.NoError(t, err)
	require.Nil(t, denied)
	assert.Equal(t, first.Other, second.Other)
	assert.Equal(t, first.Seqid+1, second.Seqid)
}

func TestLockNew_DifferentOwnerExclusiveConflict(t *testing.T) {
	mgr, _ := newTestManager(t)
	fh := createTestFile(t, mgr, "f.txt")

	_, denied, err := mgr.LockNew(fh, 1, []byte("owner-a"), types.WriteLT, 0, 50)
	require.NoError(t, err)
	require.Nil(t, denied)

	_, denied, err = mgr.LockNew(fh, 2, []byte("owner-b"), types.ReadLT, 10, 10)
	require.NoError(t, err)
	require.NotNil(t, denied)
	assert.Equal(t, uint64(0), denied.Offset)
	assert.Equal(t, uint64(50), denied.Length)
	assert.Equal(t, types.WriteLT, denied.LockType)
	assert.Equal(t, uint64(1), denied.ClientID)
}

func TestLockNew_TwoSharedReadLocksNeverConflict(t *testing.T) {
	mgr, _ := newTestManager(t)
	fh := createTestFile(t, mgr, "f.txt")

	_, denied, err := mgr.LockNew(fh, 1, []byte("owner-a"), types.ReadLT, 0, 50)
	require.NoError(t, err)
	require.Nil(t, denied)

	_, denied, err = mgr.LockNew(fh, 2, []byte("owner-b"), types.ReadLT, 10, 10)
	require.NoError(t, err)
	assert.Nil(t, denied)
}

func TestUnlock_PartialReleaseSplitsRange(t *testing.T) {
	mgr, _ := newTestManager(t)
	fh := createTestFile(t, mgr, "f.txt")

	stateid, denied, err := mgr.LockNew(fh, 1, []byte("owner-a"), types.WriteLT, 0, 100)
	require.NoError(t, err)
	require.Nil(t, denied)

	_, err = mgr.Unlock(stateid.Other, 25, 25) // releases [25,50), leaving [0,25) and [50,100)
	require.NoError(t, err)

	// [25,50) is now free: a different owner can take it.
	_, denied, err = mgr.LockNew(fh, 2, []byte("owner-b"), types.WriteLT, 25, 25)
	require.NoError(t, err)
	assert.Nil(t, denied)

	// but [0,25) is still held by owner-a.
	_, denied, err = mgr.LockNew(fh, 3, []byte("owner-c"), types.WriteLT, 0, 25)
	require.NoError(t, err)
	require.NotNil(t, denied)
}

func TestUnlock_ForeignEpochStateidIsStale(t *testing.T) {
	mgr, _ := newTestManager(t)
	_, err := mgr.Unlock([12]byte{0x02, 0xFF}, 0, 10)
	require.Error(t, err)
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, types.NFS4ErrStaleStateID, stateErr.Status)
}

func TestReleaseLockOwner_DropsAllRangesForOwner(t *testing.T) {
	mgr, _ := newTestManager(t)
	fh := createTestFile(t, mgr, "f.txt")

	_, denied, err := mgr.LockNew(fh, 1, []byte("owner-a"), types.WriteLT, 0, 50)
	require.NoError(t, err)
	require.Nil(t, denied)

	mgr.ReleaseLockOwner(1, []byte("owner-a"))

	_, denied, err = mgr.LockNew(fh, 2, []byte("owner-b"), types.WriteLT, 0, 50)
	require.NoError(t, err)
	assert.Nil(t, denied)
}

func TestTestLock_ReportsConflictWithoutMutatingState(t *testing.T) {
	mgr, _ := newTestManager(t)
	fh := createTestFile(t, mgr, "f.txt")

	_, denied, err := mgr.LockNew(fh, 1, []byte("owner-a"), types.WriteLT, 0, 50)
	require.NoError(t, err)
	require.Nil(t, denied)

	first := mgr.TestLock(fh, 2, []byte("owner-b"), types.ReadLT, 10, 10)
	require.NotNil(t, first)
	second := mgr.TestLock(fh, 2, []byte("owner-b"), types.ReadLT, 10, 10)
	require.NotNil(t, second)
	assert.Equal(t, first, second)
}
