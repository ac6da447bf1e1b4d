package attrs

import (
	"fmt"
	"time"

	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
	"github.com/leruetkins/bold-nfs/internal/vfs"
	"github.com/leruetkins/bold-nfs/internal/xdr"
)

// FH4Persistent is the only fh_expire_type this server advertises: once
// issued, a filehandle stays valid for the server's lifetime.
const FH4Persistent uint32 = 0

// Input bundles everything BuildFattr4 needs beyond the requested bitmap:
// the object's metadata snapshot plus the handful of server-wide and
// identity facts that do not live on vfs.Metadata.
type Input struct {
	Meta       vfs.Metadata
	FileID     uint64
	FileHandle []byte
	Change     uint64
	LeaseTime  uint32
}

// nfsType maps a vfs.FileType to its fattr4_type wire value.
func nfsType(t vfs.FileType) uint32 {
	switch t {
	case vfs.TypeDirectory:
		return types.NF4DIR
	case vfs.TypeSymlink:
		return types.NF4LNK
	case vfs.TypeSpecial:
		return types.NF4CHR
	default:
		return types.NF4REG
	}
}

// synthesizeMode renders a POSIX mode for the TYPE/READONLY combination
// when the backend supplied none, per spec.md §6's non-POSIX fallback.
func synthesizeMode(meta vfs.Metadata) uint32 {
	if meta.HasMode {
		return meta.Mode
	}
	if meta.Type == vfs.TypeDirectory {
		if meta.ReadOnly {
			return 0o555
		}
		return 0o777
	}
	if meta.ReadOnly {
		return 0o444
	}
	return 0o666
}

// OwnerString renders a numeric "uid@localdomain" owner identity. No
// identity-mapping service is in scope (see DESIGN.md): this server never
// resolves uid/gid to a name.
func OwnerString(id uint32) string {
	return fmt.Sprintf("%d@localdomain", id)
}

func encodeNFSTime4(e *xdr.Encoder, t time.Time) {
	e.WriteUint64(uint64(t.Unix()))
	e.WriteUint32(uint32(t.Nanosecond()))
}

// Build computes the subset of requested that this server supports and
// can answer for in, encoding each value in strictly increasing attribute
// number order as RFC 7530 §3.3.7 requires. It returns the answered
// bitmap alongside the XDR-encoded attribute value array.
func Build(requested Bitmap4, in Input) (Bitmap4, []byte) {
	var answered Bitmap4
	e := xdr.NewEncoder()

	mode := synthesizeMode(in.Meta)
	uid, gid := uint32(0), uint32(0)
	if in.Meta.HasOwner {
		uid, gid = in.Meta.UID, in.Meta.GID
	}
	nlink := in.Meta.NLink
	if nlink == 0 {
		nlink = 1
	}

	for _, attr := range SupportedAttrs {
		if !requested.IsSet(attr) {
			continue
		}
		switch attr {
		case FattrSupportedAttrs:
			EncodeBitmap4(e, SupportedAttrsBitmap())
		case FattrType:
			e.WriteUint32(nfsType(in.Meta.Type))
		case FattrFHExpireType:
			e.WriteUint32(FH4Persistent)
		case FattrChange:
			e.WriteUint64(in.Change)
		case FattrSize:
			e.WriteUint64(in.Meta.Size)
		case FattrLinkSupport:
			e.WriteBool(false)
		case FattrSymlinkSupport:
			e.WriteBool(false)
		case FattrNamedAttr:
			e.WriteBool(false)
		case FattrFSID:
			e.WriteUint64(0)
			e.WriteUint64(0)
		case FattrUniqueHandles:
			e.WriteBool(true)
		case FattrLeaseTime:
			e.WriteUint32(in.LeaseTime)
		case FattrRDAttrError:
			e.WriteUint32(types.NFS4OK)
		case FattrFileHandle:
			e.WriteOpaque(in.FileHandle)
		case FattrFileID:
			e.WriteUint64(in.FileID)
		case FattrMaxFileSize:
			e.WriteUint64(1 << 44)
		case FattrMaxName:
			e.WriteUint32(255)
		case FattrMaxRead:
			e.WriteUint64(1 << 20)
		case FattrMaxWrite:
			e.WriteUint64(1 << 20)
		case FattrMode:
			e.WriteUint32(mode)
		case FattrNoTrunc:
			e.WriteBool(true)
		case FattrNumLinks:
			e.WriteUint32(nlink)
		case FattrOwner:
			e.WriteString(OwnerString(uid))
		case FattrOwnerGroup:
			e.WriteString(OwnerString(gid))
		case FattrSpaceUsed:
			e.WriteUint64(in.Meta.Size)
		case FattrTimeAccess:
			encodeNFSTime4(e, in.Meta.ATime)
		case FattrTimeDelta:
			encodeNFSTime4(e, time.Unix(0, 1))
		case FattrTimeMetadata:
			encodeNFSTime4(e, in.Meta.CTime)
		case FattrTimeModify:
			encodeNFSTime4(e, in.Meta.MTime)
		default:
			continue
		}
		answered = answered.SetBit(attr)
	}

	return answered, e.Bytes()
}

// BuildRDAttrError encodes a minimal attribute value array carrying only
// fattr4_rdattr_error, for a READDIR entry whose metadata could not be
// read (spec.md §4.4 step 8).
func BuildRDAttrError(requested Bitmap4, status uint32) (Bitmap4, []byte) {
	if !requested.IsSet(FattrRDAttrError) {
		return nil, nil
	}
	e := xdr.NewEncoder()
	e.WriteUint32(status)
	var answered Bitmap4
	answered = answered.SetBit(FattrRDAttrError)
	return answered, e.Bytes()
}
