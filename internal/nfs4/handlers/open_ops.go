package handlers

import (
	"bytes"

	"github.com/leruetkins/bold-nfs/internal/nfs4/attrs"
	"github.com/leruetkins/bold-nfs/internal/nfs4/state"
	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
	"github.com/leruetkins/bold-nfs/internal/vfs"
	"github.com/leruetkins/bold-nfs/internal/xdr"
)

func encodeStateid(e *xdr.Encoder, s types.Stateid4) {
	e.WriteUint32(s.Seqid)
	e.WriteFixedOpaque(s.Other[:])
}

func decodeStateid(r *bytes.Reader) (types.Stateid4, error) {
	seqid, err := xdr.DecodeUint32(r)
	if err != nil {
		return types.Stateid4{}, err
	}
	raw, err := xdr.DecodeFixedOpaque(r, types.NFS4OtherSize)
	if err != nil {
		return types.Stateid4{}, err
	}
	var s types.Stateid4
	s.Seqid = seqid
	copy(s.Other[:], raw)
	return s, nil
}

// encodeLockDenied writes a LOCK4denied body: the conflicting range plus
// the lock_owner4 that holds it, per RFC 7530 §16.10.1.
func encodeLockDenied(e *xdr.Encoder, d *types.LockDenied4) {
	e.WriteUint64(d.Offset)
	e.WriteUint64(d.Length)
	e.WriteUint32(d.LockType)
	e.WriteUint64(d.ClientID)
	e.WriteOpaque(d.Owner)
}

// opOpen implements spec.md §4.3 OPEN: CLAIM_NULL only, UNCHECKED4/
// GUARDED4/EXCLUSIVE4 create modes, open-existing for the no-create path.
func opOpen(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	_, err := xdr.DecodeUint32(r) // seqid (ignored: no per-owner replay cache)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	shareAccess, err := xdr.DecodeUint32(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	shareDeny, err := xdr.DecodeUint32(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	clientIDRaw, err := xdr.DecodeFixedOpaque(r, 8)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	owner, err := xdr.DecodeOpaque(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}

	openHow, err := xdr.DecodeUint32(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}

	var createMode uint32
	var verifier *uint64
	var bitmap attrs.Bitmap4
	var rawAttrs []byte
	if openHow == types.Open4Create {
		createMode, err = xdr.DecodeUint32(r)
		if err != nil {
			return types.NFS4ErrBadXDR, nil, nil
		}
		switch createMode {
		case types.Exclusive4:
			vraw, err := xdr.DecodeFixedOpaque(r, 8)
			if err != nil {
				return types.NFS4ErrBadXDR, nil, nil
			}
			v := beUint64(vraw)
			verifier = &v
		default:
			bitmap, rawAttrs, err = decodeFattrArgs(r)
			if err != nil {
				return types.NFS4ErrBadXDR, nil, nil
			}
		}
	}

	claim, err := xdr.DecodeUint32(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	var name string
	if claim == types.ClaimNull {
		name, err = xdr.DecodeString(r)
		if err != nil {
			return types.NFS4ErrBadXDR, nil, nil
		}
	} else {
		return types.NFS4ErrNotSupp, nil, nil
	}

	if name == "" {
		return types.NFS4ErrInval, nil, nil
	}
	if status := types.ValidateUTF8Filename(name); status != types.NFS4OK {
		return status, nil, nil
	}
	if ctx.CurrentFilehandle == nil {
		return types.NFS4ErrNoFileHandle, nil, nil
	}

	mgr := managerOf(ctx)
	dirPath := vfs.Path(ctx.CurrentFilehandle.Path)
	dirFH, err := mgr.GetFilehandleForID(ctx.CurrentFilehandle.ID)
	if err != nil {
		return statusFromStateErr(err, types.NFS4ErrStale), nil, nil
	}
	if dirFH.Snapshot().Type != vfs.TypeDirectory {
		return types.NFS4ErrNotDir, nil, nil
	}

	childPath := mgr.FS().Join(dirPath, name)
	exists := mgr.FS().Exists(childPath)
	clientID := beUint64(clientIDRaw)

	var (
		fh       *state.Filehandle
		cinfo    types.ChangeInfo4
		stateid  types.Stateid4
		rflags   = types.Open4ResultConfirm
	)

	switch {
	case openHow == types.Open4NoCreate:
		if !exists {
			return types.NFS4ErrNoEnt, nil, nil
		}
		fh, stateid, err = mgr.OpenExisting(childPath, clientID, owner, shareAccess, shareDeny)
		if err != nil {
			return statusFromStateErr(err, types.NFS4ErrIO), nil, nil
		}
	case exists && createMode == types.Guarded4:
		return types.NFS4ErrExist, nil, nil
	case exists && createMode == types.Exclusive4:
		// CreateFile hands back the earlier stateid for a same-verifier retry.
		fh, cinfo, stateid, err = mgr.CreateFile(dirPath, name, clientID, owner, shareAccess, shareDeny, verifier)
		if err != nil {
			return statusFromStateErr(err, types.NFS4ErrIO), nil, nil
		}
	case exists:
		fh, stateid, err = mgr.OpenExisting(childPath, clientID, owner, shareAccess, shareDeny)
		if err != nil {
			return statusFromStateErr(err, types.NFS4ErrIO), nil, nil
		}
	default:
		if isReadOnly() {
			return types.NFS4ErrROFS, nil, nil
		}
		fh, cinfo, stateid, err = mgr.CreateFile(dirPath, name, clientID, owner, shareAccess, shareDeny, verifier)
		if err != nil {
			return statusFromStateErr(err, types.NFS4ErrIO), nil, nil
		}
		_ = applyCreateAttrs(mgr.FS(), fh.Path, bitmap, rawAttrs)
	}

	ctx.CurrentFilehandle = refOf(fh.ID, fh.Path)

	e := xdr.NewEncoder()
	encodeStateid(e, stateid)
	encodeChangeInfo(e, cinfo)
	e.WriteUint32(rflags)
	attrs.EncodeBitmap4(e, bitmap)
	e.WriteUint32(0) // delegation_type = OPEN_DELEGATE_NONE
	return types.NFS4OK, e.Bytes(), nil
}

func opOpenConfirm(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	stateid, err := decodeStateid(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	_, err = xdr.DecodeUint32(r) // seqid argument, informational only
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}

	mgr := managerOf(ctx)
	confirmed, err := mgr.ConfirmOpen(stateid.Other, stateid.Seqid)
	if err != nil {
		return statusFromStateErr(err, types.NFS4ErrBadStateID), nil, nil
	}

	e := xdr.NewEncoder()
	encodeStateid(e, confirmed)
	return types.NFS4OK, e.Bytes(), nil
}

func opClose(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	_, err := xdr.DecodeUint32(r) // seqid argument, informational only
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	stateid, err := decodeStateid(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}

	mgr := managerOf(ctx)
	if err := mgr.CloseFile(stateid.Other); err != nil {
		return statusFromStateErr(err, types.NFS4ErrBadStateID), nil, nil
	}

	e := xdr.NewEncoder()
	encodeStateid(e, types.Stateid4{Seqid: stateid.Seqid + 1})
	return types.NFS4OK, e.Bytes(), nil
}

// opLock implements RFC 7530 ch.16 LOCK: byte-range lock acquisition, both
// the open_to_lock_owner4 path (a lock_owner's first lock on this file,
// minted over an existing open stateid) and the exist_lock_owner4 path
// (extending a lock_owner's already-registered range list). Conflicting
// ranges held by a different lock_owner return NFS4ERR_DENIED with the
// conflicting LOCK4denied body instead of acquiring.
func opLock(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	lockType, err := xdr.DecodeUint32(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	if _, err := xdr.DecodeBool(r); err != nil { // reclaim: no grace-period recovery to honor
		return types.NFS4ErrBadXDR, nil, nil
	}
	offset, err := xdr.DecodeUint64(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	length, err := xdr.DecodeUint64(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	newLockOwner, err := xdr.DecodeBool(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}

	if ctx.CurrentFilehandle == nil {
		return types.NFS4ErrNoFileHandle, nil, nil
	}
	mgr := managerOf(ctx)

	var (
		stateid types.Stateid4
		denied  *types.LockDenied4
	)

	if newLockOwner {
		if _, err := xdr.DecodeUint32(r); err != nil { // open_seqid, informational only
			return types.NFS4ErrBadXDR, nil, nil
		}
		openStateid, err := decodeStateid(r)
		if err != nil {
			return types.NFS4ErrBadXDR, nil, nil
		}
		if _, err := xdr.DecodeUint32(r); err != nil { // lock_seqid, informational only
			return types.NFS4ErrBadXDR, nil, nil
		}
		clientIDRaw, err := xdr.DecodeFixedOpaque(r, 8)
		if err != nil {
			return types.NFS4ErrBadXDR, nil, nil
		}
		owner, err := xdr.DecodeOpaque(r)
		if err != nil {
			return types.NFS4ErrBadXDR, nil, nil
		}

		if _, ok := mgr.LookupOpenState(openStateid.Other); !ok {
			return types.NFS4ErrBadStateID, nil, nil
		}
		fh, err := mgr.GetFilehandleForID(ctx.CurrentFilehandle.ID)
		if err != nil {
			return statusFromStateErr(err, types.NFS4ErrStale), nil, nil
		}

		stateid, denied, err = mgr.LockNew(fh, beUint64(clientIDRaw), owner, lockType, offset, length)
		if err != nil {
			return statusFromStateErr(err, types.NFS4ErrBadStateID), nil, nil
		}
	} else {
		existingStateid, err := decodeStateid(r)
		if err != nil {
			return types.NFS4ErrBadXDR, nil, nil
		}
		if _, err := xdr.DecodeUint32(r); err != nil { // lock_seqid, informational only
			return types.NFS4ErrBadXDR, nil, nil
		}

		stateid, denied, err = mgr.LockExisting(existingStateid.Other, lockType, offset, length)
		if err != nil {
			return statusFromStateErr(err, types.NFS4ErrBadStateID), nil, nil
		}
	}

	if denied != nil {
		e := xdr.NewEncoder()
		encodeLockDenied(e, denied)
		return types.NFS4ErrDenied, e.Bytes(), nil
	}

	e := xdr.NewEncoder()
	encodeStateid(e, stateid)
	return types.NFS4OK, e.Bytes(), nil
}

// opLockT implements LOCKT: a conflict test against the current lock table
// that never creates or mutates any lock state.
func opLockT(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	lockType, err := xdr.DecodeUint32(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	offset, err := xdr.DecodeUint64(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	length, err := xdr.DecodeUint64(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	clientIDRaw, err := xdr.DecodeFixedOpaque(r, 8)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	owner, err := xdr.DecodeOpaque(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}

	if ctx.CurrentFilehandle == nil {
		return types.NFS4ErrNoFileHandle, nil, nil
	}
	mgr := managerOf(ctx)
	fh, err := mgr.GetFilehandleForID(ctx.CurrentFilehandle.ID)
	if err != nil {
		return statusFromStateErr(err, types.NFS4ErrStale), nil, nil
	}

	if denied := mgr.TestLock(fh, beUint64(clientIDRaw), owner, lockType, offset, length); denied != nil {
		e := xdr.NewEncoder()
		encodeLockDenied(e, denied)
		return types.NFS4ErrDenied, e.Bytes(), nil
	}
	return types.NFS4OK, nil, nil
}

// opLockU implements LOCKU: releases [offset, offset+length) from the
// range list the given lock stateid owns, splitting or trimming any range
// that only partially overlaps.
func opLockU(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	if _, err := xdr.DecodeUint32(r); err != nil { // locktype
		return types.NFS4ErrBadXDR, nil, nil
	}
	if _, err := xdr.DecodeUint32(r); err != nil { // seqid, informational only
		return types.NFS4ErrBadXDR, nil, nil
	}
	stateid, err := decodeStateid(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	offset, err := xdr.DecodeUint64(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	length, err := xdr.DecodeUint64(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}

	updated, err := managerOf(ctx).Unlock(stateid.Other, offset, length)
	if err != nil {
		return statusFromStateErr(err, types.NFS4ErrBadStateID), nil, nil
	}

	e := xdr.NewEncoder()
	encodeStateid(e, updated)
	return types.NFS4OK, e.Bytes(), nil
}

// opReleaseLockOwner implements RELEASE_LOCKOWNER: drops every lock state
// held by the given lock_owner4 across every filehandle.
func opReleaseLockOwner(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	clientIDRaw, err := xdr.DecodeFixedOpaque(r, 8) // lock_owner4.clientid
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	owner, err := xdr.DecodeOpaque(r) // lock_owner4.owner
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	managerOf(ctx).ReleaseLockOwner(beUint64(clientIDRaw), owner)
	return types.NFS4OK, nil, nil
}

func opSetClientID(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	verifRaw, err := xdr.DecodeFixedOpaque(r, types.NFS4VerifierSize)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	owner, err := xdr.DecodeOpaque(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	// cb_client4 (callback program/address) is decoded and discarded: this
	// server never issues delegations, so it never calls back a client.
	if _, err := xdr.DecodeUint32(r); err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	if _, err := xdr.DecodeString(r); err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	if _, err := xdr.DecodeString(r); err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	if _, err := xdr.DecodeUint32(r); err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}

	var verifier [8]byte
	copy(verifier[:], verifRaw)

	mgr := managerOf(ctx)
	clientID, confirmVerifier := mgr.SetClientID(verifier, owner)

	e := xdr.NewEncoder()
	e.WriteUint64(clientID)
	e.WriteFixedOpaque(confirmVerifier[:])
	return types.NFS4OK, e.Bytes(), nil
}

func opSetClientIDConfirm(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	clientID, err := xdr.DecodeUint64(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	verifRaw, err := xdr.DecodeFixedOpaque(r, types.NFS4VerifierSize)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	var verifier [8]byte
	copy(verifier[:], verifRaw)

	mgr := managerOf(ctx)
	if err := mgr.ConfirmClientID(clientID, verifier); err != nil {
		return statusFromStateErr(err, types.NFS4ErrClidInUse), nil, nil
	}
	return types.NFS4OK, nil, nil
}

// opSecInfo reports AUTH_SYS as the only security flavor this server
// accepts, matching spec.md's scope note ("security flavors beyond
// AUTH_SYS" are explicitly out of scope).
func opSecInfo(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	if _, err := xdr.DecodeString(r); err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	e := xdr.NewEncoder()
	e.WriteUint32(1) // one entry
	e.WriteUint32(1) // AUTH_SYS
	return types.NFS4OK, e.Bytes(), nil
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
