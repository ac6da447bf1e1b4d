package handlers

import (
	"bytes"

	"github.com/leruetkins/bold-nfs/internal/nfs4/attrs"
	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
	"github.com/leruetkins/bold-nfs/internal/vfs"
	"github.com/leruetkins/bold-nfs/internal/xdr"
)

// refOf converts a File Manager filehandle identity into the
// context-carried FilehandleRef handlers pass around.
func refOf(id [16]byte, path vfs.Path) *types.FilehandleRef {
	return &types.FilehandleRef{ID: id, Path: string(path)}
}

func opPutFH(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	raw, err := xdr.DecodeOpaque(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	if len(raw) != 16 {
		return types.NFS4ErrBadHandle, nil, nil
	}
	var fhID [16]byte
	copy(fhID[:], raw)

	mgr := managerOf(ctx)
	fh, err := mgr.GetFilehandleForID(fhID)
	if err != nil {
		return statusFromStateErr(err, types.NFS4ErrBadHandle), nil, nil
	}
	ctx.CurrentFilehandle = refOf(fh.ID, fh.Path)
	return types.NFS4OK, nil, nil
}

func opPutRootFH(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	root := managerOf(ctx).GetRootFilehandle()
	ctx.CurrentFilehandle = refOf(root.ID, root.Path)
	return types.NFS4OK, nil, nil
}

func opGetFH(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	if ctx.CurrentFilehandle == nil {
		return types.NFS4ErrNoFileHandle, nil, nil
	}
	e := xdr.NewEncoder()
	e.WriteOpaque(ctx.CurrentFilehandle.ID[:])
	return types.NFS4OK, e.Bytes(), nil
}

func opSaveFH(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	if ctx.CurrentFilehandle == nil {
		return types.NFS4ErrNoFileHandle, nil, nil
	}
	saved := *ctx.CurrentFilehandle
	ctx.SavedFilehandle = &saved
	return types.NFS4OK, nil, nil
}

func opRestoreFH(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	if ctx.SavedFilehandle == nil {
		return types.NFS4ErrRestoreFH, nil, nil
	}
	cur := *ctx.SavedFilehandle
	ctx.CurrentFilehandle = &cur
	return types.NFS4OK, nil, nil
}

func opLookup(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	name, err := xdr.DecodeString(r)
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

	mgr := managerOf(ctx)
	curPath := vfs.Path(ctx.CurrentFilehandle.Path)
	curFH, err := mgr.GetFilehandleForID(ctx.CurrentFilehandle.ID)
	if err != nil {
		return statusFromStateErr(err, types.NFS4ErrStale), nil, nil
	}
	if curFH.Snapshot().Type != vfs.TypeDirectory {
		return types.NFS4ErrNotDir, nil, nil
	}

	childPath := mgr.FS().Join(curPath, name)
	if !mgr.FS().Exists(childPath) {
		return types.NFS4ErrNoEnt, nil, nil
	}
	child, err := mgr.GetFilehandleForPath(childPath)
	if err != nil {
		return types.NFS4ErrIO, nil, nil
	}
	ctx.CurrentFilehandle = refOf(child.ID, child.Path)
	return types.NFS4OK, nil, nil
}

func opLookupP(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	if ctx.CurrentFilehandle == nil {
		return types.NFS4ErrNoFileHandle, nil, nil
	}
	mgr := managerOf(ctx)
	parentPath := mgr.FS().Parent(vfs.Path(ctx.CurrentFilehandle.Path))
	parent, err := mgr.GetFilehandleForPath(parentPath)
	if err != nil {
		return types.NFS4ErrNoEnt, nil, nil
	}
	ctx.CurrentFilehandle = refOf(parent.ID, parent.Path)
	return types.NFS4OK, nil, nil
}

func opReadLink(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	// Symlinks are recognized by the attribute model (NF4LNK), and osfs
	// reports symlinks already present in the export, but vfs.FS has no
	// readlink primitive, so READLINK always returns NFS4ERR_NOTSUPP.
	return types.NFS4ErrNotSupp, nil, nil
}

func opGetAttr(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	bitmap, err := attrs.DecodeBitmap4(r)
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

	answered, body, err := mgr.FilehandleAttrs(bitmap, fh)
	if err != nil {
		return types.NFS4ErrIO, nil, nil
	}

	e := xdr.NewEncoder()
	attrs.EncodeBitmap4(e, answered)
	e.WriteOpaque(body)
	return types.NFS4OK, e.Bytes(), nil
}
