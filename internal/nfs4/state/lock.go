package state

import (
	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
)

// lockOwnerKey identifies a lock_owner4 (clientid plus opaque owner bytes),
// grounded on the teacher's lockOwnerKey in state.StateManager.
type lockOwnerKey struct {
	clientID uint64
	owner    string
}

// lockRange is one byte-range a lockOwnerKey currently holds on a single
// filehandle.
type lockRange struct {
	offset uint64
	length uint64
	typ    uint32
}

// rangeEnd returns the first offset past a range, treating the RFC 7530
// §13.1 "lock to end of file" convention (length of all-ones) as an
// unbounded end rather than overflowing.
func rangeEnd(offset, length uint64) uint64 {
	if length == 0 || length == ^uint64(0) {
		return ^uint64(0)
	}
	end := offset + length
	if end < offset { // overflow
		return ^uint64(0)
	}
	return end
}

func rangesOverlap(aOff, aLen, bOff, bLen uint64) bool {
	aEnd := rangeEnd(aOff, aLen)
	bEnd := rangeEnd(bOff, bLen)
	return aOff < bEnd && bOff < aEnd
}

// exclusiveLockType reports whether typ is one of the WRITE_LT/WRITEW_LT
// variants; two shared (READ_LT) locks never conflict with each other.
func exclusiveLockType(typ uint32) bool {
	return typ == types.WriteLT || typ == types.WritewLT
}

func locksConflict(aType, bType uint32) bool {
	return exclusiveLockType(aType) || exclusiveLockType(bType)
}

// lockState is one lock_owner's bookkeeping on a single filehandle: the
// stateid returned to the client, and every range currently held under it.
// A lock_owner never conflicts with its own ranges (RFC 7530 §16.10),
// so ranges within one lockState are never checked against each other.
type lockState struct {
	other        [12]byte
	seqid        uint32
	filehandleID [16]byte
	owner        lockOwnerKey
	ranges       []lockRange
}

// setLockStateLocked must be called with m.mu held for writing.
func (m *Manager) setLockStateLocked(ls *lockState) {
	m.lockByOther[ls.other] = ls
	byOwner, ok := m.locksByFH[ls.filehandleID]
	if !ok {
		byOwner = map[lockOwnerKey]*lockState{}
		m.locksByFH[ls.filehandleID] = byOwner
	}
	byOwner[ls.owner] = ls
}

// lockStateForOwnerLocked must be called with m.mu held (read or write).
func (m *Manager) lockStateForOwnerLocked(fhID [16]byte, owner lockOwnerKey) (*lockState, bool) {
	byOwner, ok := m.locksByFH[fhID]
	if !ok {
		return nil, false
	}
	ls, ok := byOwner[owner]
	return ls, ok
}

// checkConflictLocked must be called with m.mu held (read or write). It
// reports the first range held by a lock_owner other than owner that
// overlaps [offset, offset+length) with a conflicting lock type.
func (m *Manager) checkConflictLocked(fhID [16]byte, owner lockOwnerKey, lockType uint32, offset, length uint64) *types.LockDenied4 {
	byOwner, ok := m.locksByFH[fhID]
	if !ok {
		return nil
	}
	for otherOwner, ls := range byOwner {
		if otherOwner == owner {
			continue
		}
		for _, rg := range ls.ranges {
			if !rangesOverlap(offset, length, rg.offset, rg.length) {
				continue
			}
			if !locksConflict(lockType, rg.typ) {
				continue
			}
			return &types.LockDenied4{
				Offset:   rg.offset,
				Length:   rg.length,
				LockType: rg.typ,
				ClientID: ls.owner.clientID,
				Owner:    []byte(ls.owner.owner),
			}
		}
	}
	return nil
}

// LookupOpenState reports whether other names a live open state, used by
// LOCK's open_to_lock_owner4 path to validate the referenced OPEN before
// minting a lock stateid over it.
func (m *Manager) LookupOpenState(other [12]byte) (*OpenState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	os, ok := m.openByOther[other]
	return os, ok
}

// LockNew implements the open_to_lock_owner4 branch of LOCK: clientID/owner
// name a lock_owner that may or may not already hold state on fh. A fresh
// lock stateid is minted the first time this owner locks fh; subsequent
// calls extend that same stateid's range list and bump its seqid.
func (m *Manager) LockNew(fh *Filehandle, clientID uint64, owner []byte, lockType uint32, offset, length uint64) (types.Stateid4, *types.LockDenied4, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := lockOwnerKey{clientID: clientID, owner: string(owner)}
	if denied := m.checkConflictLocked(fh.ID, key, lockType, offset, length); denied != nil {
		return types.Stateid4{}, denied, nil
	}

	ls, ok := m.lockStateForOwnerLocked(fh.ID, key)
	if !ok {
		ls = &lockState{
			other:        m.generateStateidOther(stateTypeLock),
			seqid:        1,
			filehandleID: fh.ID,
			owner:        key,
		}
		m.setLockStateLocked(ls)
	} else {
		ls.seqid++
	}
	ls.ranges = append(ls.ranges, lockRange{offset: offset, length: length, typ: lockType})

	return types.Stateid4{Seqid: ls.seqid, Other: ls.other}, nil, nil
}

// LockExisting implements the exist_lock_owner4 branch of LOCK: other
// already names a lock_owner's state on some filehandle, and this call
// extends its range list with a new, non-conflicting range.
func (m *Manager) LockExisting(other [12]byte, lockType uint32, offset, length uint64) (types.Stateid4, *types.LockDenied4, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ls, ok := m.lockByOther[other]
	if !ok {
		if !m.isCurrentEpoch(other) {
			return types.Stateid4{}, nil, newStateError(types.NFS4ErrStaleStateID, "stateid from a previous server instance")
		}
		return types.Stateid4{}, nil, newStateError(types.NFS4ErrBadStateID, "unknown lock stateid")
	}

	if denied := m.checkConflictLocked(ls.filehandleID, ls.owner, lockType, offset, length); denied != nil {
		return types.Stateid4{}, denied, nil
	}

	ls.ranges = append(ls.ranges, lockRange{offset: offset, length: length, typ: lockType})
	ls.seqid++
	return types.Stateid4{Seqid: ls.seqid, Other: ls.other}, nil, nil
}

// TestLock implements LOCKT: reports the conflicting range, if any, without
// creating or touching any lock state.
func (m *Manager) TestLock(fh *Filehandle, clientID uint64, owner []byte, lockType uint32, offset, length uint64) *types.LockDenied4 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := lockOwnerKey{clientID: clientID, owner: string(owner)}
	return m.checkConflictLocked(fh.ID, key, lockType, offset, length)
}

// subtractRange removes [offset, offset+length) from held, splitting it in
// two if the removed span falls strictly inside held, or trimming/dropping
// it otherwise.
func subtractRange(held lockRange, offset, length uint64) []lockRange {
	heldEnd := rangeEnd(held.offset, held.length)
	removeEnd := rangeEnd(offset, length)

	if removeEnd <= held.offset || offset >= heldEnd {
		return []lockRange{held} // no overlap
	}

	var out []lockRange
	if held.offset < offset {
		out = append(out, lockRange{offset: held.offset, length: offset - held.offset, typ: held.typ})
	}
	if removeEnd < heldEnd {
		var tailLen uint64
		if heldEnd != ^uint64(0) {
			tailLen = heldEnd - removeEnd
		}
		out = append(out, lockRange{offset: removeEnd, length: tailLen, typ: held.typ})
	}
	return out
}

// Unlock implements LOCKU: removes [offset, offset+length) from the range
// list other owns, splitting or trimming any range that only partially
// overlaps. The lock state's stateid stays registered (with a bumped
// seqid) even once its range list empties, so a replayed LOCKU still
// resolves instead of bouncing as NFS4ERR_BAD_STATEID.
func (m *Manager) Unlock(other [12]byte, offset, length uint64) (types.Stateid4, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ls, ok := m.lockByOther[other]
	if !ok {
		if !m.isCurrentEpoch(other) {
			return types.Stateid4{}, newStateError(types.NFS4ErrStaleStateID, "stateid from a previous server instance")
		}
		return types.Stateid4{}, newStateError(types.NFS4ErrBadStateID, "unknown lock stateid")
	}

	remaining := make([]lockRange, 0, len(ls.ranges))
	for _, rg := range ls.ranges {
		remaining = append(remaining, subtractRange(rg, offset, length)...)
	}
	ls.ranges = remaining
	ls.seqid++

	return types.Stateid4{Seqid: ls.seqid, Other: ls.other}, nil
}

// ReleaseLockOwner implements RELEASE_LOCKOWNER: drops every lock state
// (on any filehandle) held by clientID/owner.
func (m *Manager) ReleaseLockOwner(clientID uint64, owner []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := lockOwnerKey{clientID: clientID, owner: string(owner)}
	for fhID, byOwner := range m.locksByFH {
		ls, ok := byOwner[key]
		if !ok {
			continue
		}
		delete(byOwner, key)
		delete(m.lockByOther, ls.other)
		if len(byOwner) == 0 {
			delete(m.locksByFH, fhID)
		}
	}
}
