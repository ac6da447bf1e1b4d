package attrs

// Attribute numbers this server recognizes (RFC 7530 §5.8), restricted to
// the subset GETATTR/READDIR actually answer.
const (
	FattrSupportedAttrs uint32 = 0
	FattrType           uint32 = 1
	FattrFHExpireType   uint32 = 2
	FattrChange         uint32 = 3
	FattrSize           uint32 = 4
	FattrLinkSupport    uint32 = 5
	FattrSymlinkSupport uint32 = 6
	FattrNamedAttr      uint32 = 7
	FattrFSID           uint32 = 8
	FattrUniqueHandles  uint32 = 9
	FattrLeaseTime      uint32 = 10
	FattrRDAttrError    uint32 = 11
	FattrFileHandle     uint32 = 19
	FattrFileID         uint32 = 20
	FattrFilesAvail     uint32 = 21
	FattrFilesFree      uint32 = 22
	FattrFilesTotal     uint32 = 23
	FattrMaxFileSize    uint32 = 27
	FattrMaxName        uint32 = 29
	FattrMaxRead        uint32 = 30
	FattrMaxWrite       uint32 = 31
	FattrMode           uint32 = 33
	FattrNoTrunc        uint32 = 34
	FattrNumLinks       uint32 = 35
	FattrOwner          uint32 = 36
	FattrOwnerGroup     uint32 = 37
	FattrSpaceAvail     uint32 = 38
	FattrSpaceFree      uint32 = 39
	FattrSpaceTotal     uint32 = 40
	FattrSpaceUsed      uint32 = 41
	FattrTimeAccess     uint32 = 47
	FattrTimeDelta      uint32 = 51
	FattrTimeMetadata   uint32 = 52
	FattrTimeModify     uint32 = 53
)

// SupportedAttrs lists every attribute this server can answer, used to
// build the FATTR4_SUPPORTED_ATTRS bitmap.
var SupportedAttrs = []uint32{
	FattrSupportedAttrs,
	FattrType,
	FattrFHExpireType,
	FattrChange,
	FattrSize,
	FattrLinkSupport,
	FattrSymlinkSupport,
	FattrNamedAttr,
	FattrFSID,
	FattrUniqueHandles,
	FattrLeaseTime,
	FattrRDAttrError,
	FattrFileHandle,
	FattrFileID,
	FattrMaxFileSize,
	FattrMaxName,
	FattrMaxRead,
	FattrMaxWrite,
	FattrMode,
	FattrNoTrunc,
	FattrNumLinks,
	FattrOwner,
	FattrOwnerGroup,
	FattrSpaceUsed,
	FattrTimeAccess,
	FattrTimeDelta,
	FattrTimeMetadata,
	FattrTimeModify,
}

// SupportedAttrsBitmap returns the bitmap4 advertised as
// FATTR4_SUPPORTED_ATTRS.
func SupportedAttrsBitmap() Bitmap4 {
	var b Bitmap4
	for _, a := range SupportedAttrs {
		b = b.SetBit(a)
	}
	return b
}
