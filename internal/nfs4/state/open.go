package state

import (
	"time"

	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
	"github.com/leruetkins/bold-nfs/internal/vfs"
)

func stateidFromOpenState(os *OpenState) types.Stateid4 {
	return types.Stateid4{Seqid: os.Seqid, Other: os.Other}
}

// newOpenStateLocked must be called with m.mu held for writing.
func (m *Manager) newOpenStateLocked(fh *Filehandle, clientID uint64, owner []byte, shareAccess, shareDeny uint32, verifier *uint64) *OpenState {
	os := &OpenState{
		Other:        m.generateStateidOther(stateTypeOpen),
		Seqid:        1,
		ClientID:     clientID,
		Owner:        append([]byte(nil), owner...),
		ShareAccess:  shareAccess,
		ShareDeny:    shareDeny,
		Verifier:     verifier,
		FilehandleID: fh.ID,
		CreatedAt:    time.Now(),
	}
	m.openByOther[os.Other] = os
	fh.mu.Lock()
	fh.Opens[os.Other] = os
	fh.mu.Unlock()
	return os
}

// findExclusiveRetry looks for an existing open state on fh created with
// the same EXCLUSIVE4 verifier, implementing the idempotent-retry rule of
// spec.md §4.3 OPEN and testable invariant 8.
func findExclusiveRetry(fh *Filehandle, verifier *uint64) *OpenState {
	if verifier == nil {
		return nil
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	for _, os := range fh.Opens {
		if os.Verifier != nil && *os.Verifier == *verifier {
			return os
		}
	}
	return nil
}

// CreateFile implements spec.md §4.2's create_file: creates a regular file
// at join(dirPath, name) if absent (or opens it if present, matching the
// OPEN handler's UNCHECKED4/GUARDED4 dispatch), allocates an unconfirmed
// open state, and returns the new filehandle, its stateid, and the
// parent directory's ChangeInfo.
//
// It never holds m.mu across a VFS call (spec.md §4.2): the directory
// change counter is sampled and the backend is queried/mutated unlocked,
// and m.mu is only briefly retaken to commit the resulting cache entry and
// open state.
func (m *Manager) CreateFile(dirPath vfs.Path, name string, clientID uint64, owner []byte, shareAccess, shareDeny uint32, verifier *uint64) (*Filehandle, types.ChangeInfo4, types.Stateid4, error) {
	fullPath := m.fs.Join(dirPath, name)

	m.mu.Lock()
	before := m.dirChangeLocked(dirPath)
	m.mu.Unlock()

	alreadyExists := m.fs.Exists(fullPath)

	if alreadyExists {
		m.mu.RLock()
		existing, ok := m.byPath[string(fullPath)]
		m.mu.RUnlock()
		if ok {
			if retry := findExclusiveRetry(existing, verifier); retry != nil {
				return existing, types.ChangeInfo4{Atomic: true, Before: before, After: before}, stateidFromOpenState(retry), nil
			}
		}
	} else {
		w, err := m.fs.CreateFile(fullPath)
		if err != nil {
			return nil, types.ChangeInfo4{}, types.Stateid4{}, err
		}
		if err := w.Close(); err != nil {
			return nil, types.ChangeInfo4{}, types.Stateid4{}, err
		}
	}

	meta, err := m.statForFilehandle(fullPath)
	if err != nil {
		return nil, types.ChangeInfo4{}, types.Stateid4{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fh := m.commitFilehandleLocked(fullPath, meta)

	var cinfo types.ChangeInfo4
	if alreadyExists {
		cinfo = types.ChangeInfo4{Atomic: true, Before: before, After: before}
	} else {
		cinfo = m.changeInfo(dirPath, before)
	}

	os := m.newOpenStateLocked(fh, clientID, owner, shareAccess, shareDeny, verifier)
	return fh, cinfo, stateidFromOpenState(os), nil
}

// OpenExisting implements the "open existing" branch of spec.md §4.3
// OPEN: the file already exists, so this only allocates a fresh
// unconfirmed open state over it. The backend stat runs unlocked; m.mu is
// only taken to commit the filehandle cache entry and open state.
func (m *Manager) OpenExisting(path vfs.Path, clientID uint64, owner []byte, shareAccess, shareDeny uint32) (*Filehandle, types.Stateid4, error) {
	meta, err := m.statForFilehandle(path)
	if err != nil {
		return nil, types.Stateid4{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fh := m.commitFilehandleLocked(path, meta)
	os := m.newOpenStateLocked(fh, clientID, owner, shareAccess, shareDeny, nil)
	return fh, stateidFromOpenState(os), nil
}

// ConfirmOpen implements OPEN_CONFIRM: locates the open state by its
// stateid "other" and marks it confirmed, advancing seqid.
func (m *Manager) ConfirmOpen(other [12]byte, seqid uint32) (types.Stateid4, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	os, ok := m.openByOther[other]
	if !ok {
		if !m.isCurrentEpoch(other) {
			return types.Stateid4{}, newStateError(types.NFS4ErrStaleStateID, "stateid from a previous server instance")
		}
		return types.Stateid4{}, newStateError(types.NFS4ErrBadStateID, "unknown stateid")
	}
	if os.Confirmed {
		return types.Stateid4{}, newStateError(types.NFS4ErrBadStateID, "already confirmed")
	}
	if seqid != os.Seqid {
		return types.Stateid4{}, newStateError(types.NFS4ErrBadSeqid, "seqid mismatch")
	}
	os.Confirmed = true
	os.Seqid++
	return stateidFromOpenState(os), nil
}

// CloseFile releases the open state named by other. If the owning
// filehandle has been unlinked while open and this was its last open
// state, the record is evicted from the cache entirely.
func (m *Manager) CloseFile(other [12]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	os, ok := m.openByOther[other]
	if !ok {
		if !m.isCurrentEpoch(other) {
			return newStateError(types.NFS4ErrStaleStateID, "stateid from a previous server instance")
		}
		return newStateError(types.NFS4ErrBadStateID, "unknown stateid")
	}

	delete(m.openByOther, other)

	fh, ok := m.byID[os.FilehandleID]
	if ok {
		fh.mu.Lock()
		delete(fh.Opens, other)
		remaining := len(fh.Opens)
		removed := fh.Removed
		fh.mu.Unlock()

		if removed && remaining == 0 {
			delete(m.byID, fh.ID)
			delete(m.byPath, string(fh.Path))
		}
	}
	return nil
}

// ReapUnconfirmed releases every unconfirmed open state older than
// maxAge, returning the count reaped. Never called automatically — spec.md
// §3 describes this as an implementation-defined, not mandatory, grace
// window.
func (m *Manager) ReapUnconfirmed(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	n := 0
	for other, os := range m.openByOther {
		if os.Confirmed || os.CreatedAt.After(cutoff) {
			continue
		}
		delete(m.openByOther, other)
		if fh, ok := m.byID[os.FilehandleID]; ok {
			fh.mu.Lock()
			delete(fh.Opens, other)
			fh.mu.Unlock()
		}
		n++
	}
	return n
}
