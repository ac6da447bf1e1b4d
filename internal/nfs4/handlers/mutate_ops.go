package handlers

import (
	"bytes"
	"time"

	"github.com/leruetkins/bold-nfs/internal/nfs4/attrs"
	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
	"github.com/leruetkins/bold-nfs/internal/vfs"
	"github.com/leruetkins/bold-nfs/internal/xdr"
)

func encodeChangeInfo(e *xdr.Encoder, ci types.ChangeInfo4) {
	e.WriteBool(ci.Atomic)
	e.WriteUint64(ci.Before)
	e.WriteUint64(ci.After)
}

// decodeFattrArgs reads an attribute bitmap + opaque attribute value array
// (the createattrs4/fattr4 shared by CREATE and SETATTR) without decoding
// individual values; only MODE, SIZE, and the two time attributes are
// applied (spec.md §4.3 SETATTR contract), decoded lazily by the caller
// from the returned raw bytes.
func decodeFattrArgs(r *bytes.Reader) (attrs.Bitmap4, []byte, error) {
	bitmap, err := attrs.DecodeBitmap4(r)
	if err != nil {
		return nil, nil, err
	}
	raw, err := xdr.DecodeOpaque(r)
	if err != nil {
		return nil, nil, err
	}
	return bitmap, raw, nil
}

// applyCreateAttrs applies MODE (if requested) via SetPermissions; nothing
// else in createattrs4 is honored on creation (spec.md's reduced SETATTR
// contract applies identically here).
func applyCreateAttrs(fsys vfs.FS, path vfs.Path, bitmap attrs.Bitmap4, raw []byte) error {
	if !bitmap.IsSet(attrs.FattrMode) {
		return nil
	}
	r := bytes.NewReader(raw)
	mode, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil
	}
	return fsys.SetPermissions(path, mode)
}

func opCreate(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	if isReadOnly() {
		return types.NFS4ErrROFS, nil, nil
	}
	objType, err := xdr.DecodeUint32(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}

	var linkData string
	var specdata1, specdata2 uint32
	switch objType {
	case types.NF4LNK:
		linkData, err = xdr.DecodeString(r)
	case types.NF4BLK, types.NF4CHR:
		specdata1, err = xdr.DecodeUint32(r)
		if err == nil {
			specdata2, err = xdr.DecodeUint32(r)
		}
	}
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	_ = linkData
	_ = specdata1
	_ = specdata2

	name, err := xdr.DecodeString(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	bitmap, rawAttrs, err := decodeFattrArgs(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
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
	if objType != types.NF4DIR {
		// Symlinks and device/special nodes are recognized by the
		// attribute model but this server's vfs.FS has no primitive to
		// create them.
		return types.NFS4ErrBadType, nil, nil
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

	fh, cinfo, err := mgr.CreateDir(dirPath, name)
	if err != nil {
		return statusFromStateErr(err, types.NFS4ErrIO), nil, nil
	}

	_ = applyCreateAttrs(mgr.FS(), fh.Path, bitmap, rawAttrs)

	ctx.CurrentFilehandle = refOf(fh.ID, fh.Path)

	e := xdr.NewEncoder()
	encodeChangeInfo(e, cinfo)
	attrs.EncodeBitmap4(e, bitmap) // attrset: what CREATE claims to have applied
	return types.NFS4OK, e.Bytes(), nil
}

func opRemove(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	if isReadOnly() {
		return types.NFS4ErrROFS, nil, nil
	}
	name, err := xdr.DecodeString(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	if status := types.ValidateUTF8Filename(name); status != types.NFS4OK {
		return status, nil, nil
	}
	if ctx.CurrentFilehandle == nil {
		return types.NFS4ErrNoFileHandle, nil, nil
	}

	mgr := managerOf(ctx)
	dirPath := vfs.Path(ctx.CurrentFilehandle.Path)
	cinfo, err := mgr.RemoveFile(dirPath, name)
	if err != nil {
		return statusFromStateErr(err, types.NFS4ErrIO), nil, nil
	}

	e := xdr.NewEncoder()
	encodeChangeInfo(e, cinfo)
	return types.NFS4OK, e.Bytes(), nil
}

func opRename(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	if isReadOnly() {
		return types.NFS4ErrROFS, nil, nil
	}
	oldName, err := xdr.DecodeString(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	newName, err := xdr.DecodeString(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	if status := types.ValidateUTF8Filename(oldName); status != types.NFS4OK {
		return status, nil, nil
	}
	if status := types.ValidateUTF8Filename(newName); status != types.NFS4OK {
		return status, nil, nil
	}
	if ctx.SavedFilehandle == nil || ctx.CurrentFilehandle == nil {
		return types.NFS4ErrNoFileHandle, nil, nil
	}

	mgr := managerOf(ctx)
	srcDir := vfs.Path(ctx.SavedFilehandle.Path)
	dstDir := vfs.Path(ctx.CurrentFilehandle.Path)

	srcInfo, dstInfo, err := mgr.RenameFile(srcDir, oldName, dstDir, newName)
	if err != nil {
		return statusFromStateErr(err, types.NFS4ErrIO), nil, nil
	}

	e := xdr.NewEncoder()
	encodeChangeInfo(e, srcInfo)
	encodeChangeInfo(e, dstInfo)
	return types.NFS4OK, e.Bytes(), nil
}

func opLink(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	if isReadOnly() {
		return types.NFS4ErrROFS, nil, nil
	}
	newName, err := xdr.DecodeString(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	if status := types.ValidateUTF8Filename(newName); status != types.NFS4OK {
		return status, nil, nil
	}
	if ctx.SavedFilehandle == nil || ctx.CurrentFilehandle == nil {
		return types.NFS4ErrNoFileHandle, nil, nil
	}

	mgr := managerOf(ctx)
	cinfo, err := mgr.LinkFile(vfs.Path(ctx.SavedFilehandle.Path), vfs.Path(ctx.CurrentFilehandle.Path), newName)
	status := statusFromStateErr(err, types.NFS4ErrNotSupp)

	e := xdr.NewEncoder()
	encodeChangeInfo(e, cinfo)
	return status, e.Bytes(), nil
}

// opSetAttr applies the reduced SETATTR contract spec.md §4.3 calls out:
// mode, size (truncation), atime, mtime. uid/gid are silently ignored
// (spec.md §9 open question, preserved as-is pending an identity-mapping
// policy decision).
func opSetAttr(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	if isReadOnly() {
		return types.NFS4ErrROFS, nil, nil
	}
	_, err := xdr.DecodeFixedOpaque(r, 4+12) // stateid: seqid(4) + other(12)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	bitmap, raw, err := decodeFattrArgs(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	if ctx.CurrentFilehandle == nil {
		return types.NFS4ErrNoFileHandle, nil, nil
	}

	mgr := managerOf(ctx)
	path := vfs.Path(ctx.CurrentFilehandle.Path)
	fsys := mgr.FS()
	br := bytes.NewReader(raw)

	var applied attrs.Bitmap4
	for _, attr := range attrs.SupportedAttrs {
		if !bitmap.IsSet(attr) {
			continue
		}
		switch attr {
		case attrs.FattrSize:
			size, derr := xdr.DecodeUint64(br)
			if derr != nil {
				return types.NFS4ErrBadXDR, nil, nil
			}
			if err := fsys.SetLen(path, size); err != nil {
				return statusFromStateErr(err, types.NFS4ErrIO), nil, nil
			}
			applied = applied.SetBit(attr)
		case attrs.FattrMode:
			mode, derr := xdr.DecodeUint32(br)
			if derr != nil {
				return types.NFS4ErrBadXDR, nil, nil
			}
			if err := fsys.SetPermissions(path, mode); err != nil {
				return statusFromStateErr(err, types.NFS4ErrIO), nil, nil
			}
			applied = applied.SetBit(attr)
		case attrs.FattrTimeAccess, attrs.FattrTimeModify:
			sec, derr := xdr.DecodeUint64(br)
			if derr != nil {
				return types.NFS4ErrBadXDR, nil, nil
			}
			nsec, derr := xdr.DecodeUint32(br)
			if derr != nil {
				return types.NFS4ErrBadXDR, nil, nil
			}
			t := time.Unix(int64(sec), int64(nsec))
			if attr == attrs.FattrTimeAccess {
				if err := fsys.SetTimes(path, &t, nil); err != nil {
					return statusFromStateErr(err, types.NFS4ErrIO), nil, nil
				}
			} else {
				if err := fsys.SetTimes(path, nil, &t); err != nil {
					return statusFromStateErr(err, types.NFS4ErrIO), nil, nil
				}
			}
			applied = applied.SetBit(attr)
		default:
			// uid/gid and anything else this server does not support
			// as a mutation target is silently skipped, matching
			// spec.md's documented ambiguity.
		}
	}

	e := xdr.NewEncoder()
	attrs.EncodeBitmap4(e, applied)
	return types.NFS4OK, e.Bytes(), nil
}

func opAccess(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	requested, err := xdr.DecodeUint32(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	if ctx.CurrentFilehandle == nil {
		return types.NFS4ErrNoFileHandle, nil, nil
	}
	// No POSIX permission-bit enforcement is implemented (spec.md never
	// requires it, and AUTH_SYS identity is not cross-checked against
	// file ownership); every bit the client asked about is granted.
	e := xdr.NewEncoder()
	e.WriteUint32(requested)
	e.WriteUint32(requested)
	return types.NFS4OK, e.Bytes(), nil
}

func opVerify(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	return verifyCommon(ctx, r, false)
}

func opNVerify(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	return verifyCommon(ctx, r, true)
}

// verifyCommon implements VERIFY/NVERIFY: re-synthesize the requested
// attributes for the current filehandle and byte-compare against the
// client-supplied values. VERIFY (negate=false) succeeds on a match and
// reports NFS4ERR_NOT_SAME otherwise; NVERIFY (negate=true) succeeds on a
// mismatch and reports NFS4ERR_SAME when the attributes turned out equal.
func verifyCommon(ctx *types.CompoundContext, r *bytes.Reader, negate bool) (uint32, []byte, error) {
	bitmap, raw, err := decodeFattrArgs(r)
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
	_, body, err := mgr.FilehandleAttrs(bitmap, fh)
	if err != nil {
		return types.NFS4ErrIO, nil, nil
	}

	matches := bytes.Equal(body, raw)
	if !negate {
		if matches {
			return types.NFS4OK, nil, nil
		}
		return types.NFS4ErrNotSame, nil, nil
	}
	if matches {
		return types.NFS4ErrSame, nil, nil
	}
	return types.NFS4OK, nil, nil
}
