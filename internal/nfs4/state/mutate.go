package state

import (
	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
	"github.com/leruetkins/bold-nfs/internal/vfs"
)

// CreateDir implements the CREATE operation's directory case: creates a
// directory as a child of dirPath and returns the new filehandle plus the
// parent's ChangeInfo. The backend mutation and stat run unlocked; m.mu is
// only retaken to sample the before/after change counters and commit the
// filehandle cache entry (spec.md §4.2).
func (m *Manager) CreateDir(dirPath vfs.Path, name string) (*Filehandle, types.ChangeInfo4, error) {
	fullPath := m.fs.Join(dirPath, name)

	m.mu.Lock()
	before := m.dirChangeLocked(dirPath)
	m.mu.Unlock()

	if err := m.fs.CreateDir(fullPath); err != nil {
		return nil, types.ChangeInfo4{}, err
	}

	meta, err := m.statForFilehandle(fullPath)
	if err != nil {
		return nil, types.ChangeInfo4{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	fh := m.commitFilehandleLocked(fullPath, meta)
	return fh, m.changeInfo(dirPath, before), nil
}

// RemoveFile unlinks the child named name of dirPath. If the target has
// live open state, the filehandle cache entry is marked Removed rather
// than evicted (spec.md §3 "a filehandle with non-empty locks cannot be
// silently evicted"); CloseFile performs the deferred eviction once the
// last open state drops. The backend unlink runs unlocked; m.mu is only
// retaken to commit the cache eviction and change counters.
func (m *Manager) RemoveFile(dirPath vfs.Path, name string) (types.ChangeInfo4, error) {
	fullPath := m.fs.Join(dirPath, name)

	m.mu.Lock()
	before := m.dirChangeLocked(dirPath)
	m.mu.Unlock()

	if err := m.fs.Remove(fullPath); err != nil {
		return types.ChangeInfo4{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := string(fullPath)
	if fh, ok := m.byPath[key]; ok {
		delete(m.byPath, key)
		fh.mu.Lock()
		fh.Removed = true
		stillOpen := len(fh.Opens) > 0
		fh.mu.Unlock()
		if !stillOpen {
			delete(m.byID, fh.ID)
		}
	}

	return m.changeInfo(dirPath, before), nil
}

// RenameFile moves srcDir/srcName to dstDir/dstName, returning ChangeInfo
// for both the source and destination directories (identical values when
// they are the same directory). The backend rename runs unlocked; m.mu is
// only retaken, before and after, to snapshot/commit the cache state
// (spec.md §4.2).
func (m *Manager) RenameFile(srcDir vfs.Path, srcName string, dstDir vfs.Path, dstName string) (types.ChangeInfo4, types.ChangeInfo4, error) {
	srcPath := m.fs.Join(srcDir, srcName)
	dstPath := m.fs.Join(dstDir, dstName)

	m.mu.Lock()
	srcBefore := m.dirChangeLocked(srcDir)
	dstBefore := m.dirChangeLocked(dstDir)

	// Capture whatever filehandle previously lived at dstPath before the
	// move overwrites it on disk: it names a now-superseded object and
	// must lose its cache identity (spec.md §3 "a removed-then-recreated
	// path MUST receive a fresh ID").
	overwritten, hadOverwritten := m.byPath[string(dstPath)]
	m.mu.Unlock()

	if err := m.fs.Rename(srcPath, dstPath); err != nil {
		return types.ChangeInfo4{}, types.ChangeInfo4{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if hadOverwritten {
		delete(m.byPath, string(dstPath))
		overwritten.mu.Lock()
		overwritten.Removed = true
		stillOpen := len(overwritten.Opens) > 0
		overwritten.mu.Unlock()
		if !stillOpen {
			delete(m.byID, overwritten.ID)
		}
	}

	if fh, ok := m.byPath[string(srcPath)]; ok {
		delete(m.byPath, string(srcPath))
		fh.Path = dstPath
		m.byPath[string(dstPath)] = fh
	}

	srcAfter := m.changeInfo(srcDir, srcBefore)
	var dstAfter types.ChangeInfo4
	if dstDir == srcDir {
		dstAfter = srcAfter
	} else {
		dstAfter = m.changeInfo(dstDir, dstBefore)
	}
	return srcAfter, dstAfter, nil
}

// LinkFile is the LINK entry point for dstDir/dstName. vfs.FS has no way to
// create a hard link, so it always returns NFS4ERR_NOTSUPP; it still bumps
// dstDir's change counter and returns the resulting ChangeInfo4.
func (m *Manager) LinkFile(srcPath vfs.Path, dstDir vfs.Path, dstName string) (types.ChangeInfo4, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_ = srcPath
	before := m.dirChangeLocked(dstDir)
	// Hard links are not modeled by vfs.FS (no Link method in its narrow
	// contract); this server does not claim LINK_SUPPORT (see attrs
	// package), so handlers never reach this in practice. Kept for
	// completeness of the dispatch table entry.
	return m.changeInfo(dstDir, before), newStateError(types.NFS4ErrNotSupp, "hard links are not supported by the backing filesystem")
}
