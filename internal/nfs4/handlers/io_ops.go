package handlers

import (
	"bytes"
	"crypto/rand"
	"io"

	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
	"github.com/leruetkins/bold-nfs/internal/vfs"
	"github.com/leruetkins/bold-nfs/internal/xdr"
)

// maxReadCount bounds a single READ reply, matching the FattrMaxRead value
// the attribute model advertises.
const maxReadCount = 1 << 20

// opRead implements spec.md §4.3 READ: offset past end-of-file returns
// empty data with eof=true rather than an error; otherwise reads up to
// count bytes and reports eof only when the read reached the end.
func opRead(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	stateid, err := decodeStateid(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	offset, err := xdr.DecodeUint64(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	count, err := xdr.DecodeUint32(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	_ = stateid
	if count > maxReadCount {
		count = maxReadCount
	}

	if ctx.CurrentFilehandle == nil {
		return types.NFS4ErrNoFileHandle, nil, nil
	}
	mgr := managerOf(ctx)
	path := vfs.Path(ctx.CurrentFilehandle.Path)

	fh, err := mgr.GetFilehandleForID(ctx.CurrentFilehandle.ID)
	if err != nil {
		return statusFromStateErr(err, types.NFS4ErrStale), nil, nil
	}
	meta := fh.Snapshot()
	if meta.Type == vfs.TypeDirectory {
		return types.NFS4ErrIsDir, nil, nil
	}

	e := xdr.NewEncoder()
	if offset >= meta.Size {
		e.WriteBool(true) // eof
		e.WriteOpaque(nil)
		return types.NFS4OK, e.Bytes(), nil
	}

	f, err := mgr.FS().OpenFile(path)
	if err != nil {
		return statusFromStateErr(err, types.NFS4ErrIO), nil, nil
	}
	defer f.Close()

	if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
		return types.NFS4ErrIO, nil, nil
	}
	buf := make([]byte, count)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return types.NFS4ErrIO, nil, nil
	}
	data := buf[:n]
	eof := uint64(n)+offset >= meta.Size

	e.WriteBool(eof)
	e.WriteOpaque(data)
	return types.NFS4OK, e.Bytes(), nil
}

// writeVerifier is stable for the server's lifetime and changes only on
// restart, matching spec.md §4.3's WRITE contract.
var writeVerifier [8]byte

func init() {
	_, _ = rand.Read(writeVerifier[:])
}

func opWrite(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	if isReadOnly() {
		return types.NFS4ErrROFS, nil, nil
	}
	stateid, err := decodeStateid(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	offset, err := xdr.DecodeUint64(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	stable, err := xdr.DecodeUint32(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	data, err := xdr.DecodeOpaque(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	_ = stateid

	if ctx.CurrentFilehandle == nil {
		return types.NFS4ErrNoFileHandle, nil, nil
	}
	mgr := managerOf(ctx)
	path := vfs.Path(ctx.CurrentFilehandle.Path)

	w, err := mgr.FS().CreateFile(path)
	if err != nil {
		return statusFromStateErr(err, types.NFS4ErrIO), nil, nil
	}
	defer w.Close()

	if _, err := w.Seek(int64(offset), io.SeekStart); err != nil {
		return types.NFS4ErrIO, nil, nil
	}
	n, err := w.Write(data)
	if err != nil {
		return statusFromStateErr(err, types.NFS4ErrIO), nil, nil
	}

	e := xdr.NewEncoder()
	e.WriteUint32(uint32(n))
	e.WriteUint32(stable) // this server has no write-back cache to defer
	e.WriteFixedOpaque(writeVerifier[:])
	return types.NFS4OK, e.Bytes(), nil
}

func opCommit(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	if _, err := xdr.DecodeUint64(r); err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	if _, err := xdr.DecodeUint32(r); err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	if ctx.CurrentFilehandle == nil {
		return types.NFS4ErrNoFileHandle, nil, nil
	}
	// Every WRITE in this server already flushes through Close before
	// returning (see opWrite), so COMMIT has nothing outstanding to flush.
	e := xdr.NewEncoder()
	e.WriteFixedOpaque(writeVerifier[:])
	return types.NFS4OK, e.Bytes(), nil
}
