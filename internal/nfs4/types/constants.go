// Package types holds the wire-level constants and shared request/result
// types the COMPOUND dispatcher and operation handlers share: opcode and
// status numbers (RFC 7530 exact values), file types, and the per-request
// context threaded through a COMPOUND.
package types

// Protocol limits.
const (
	NFS4FHSize        = 128
	NFS4OtherSize      = 12
	NFS4VerifierSize   = 8
	MinorVersion0      = 0
	MaxCompoundOps     = 128
)

// NFSv4 object types (fattr4_type).
const (
	NF4REG       uint32 = 1
	NF4DIR       uint32 = 2
	NF4BLK       uint32 = 3
	NF4CHR       uint32 = 4
	NF4LNK       uint32 = 5
	NF4SOCK      uint32 = 6
	NF4FIFO      uint32 = 7
	NF4ATTRDIR   uint32 = 8
	NF4NAMEDATTR uint32 = 9
)

// Opcodes this server recognizes as valid NFSv4.0 opnums, whether or not a
// handler is registered for them (RFC 7530 §17).
const (
	OpAccess            uint32 = 3
	OpClose             uint32 = 4
	OpCommit            uint32 = 5
	OpCreate            uint32 = 6
	OpDelegPurge        uint32 = 7
	OpDelegReturn       uint32 = 8
	OpGetAttr           uint32 = 9
	OpGetFH             uint32 = 10
	OpLink              uint32 = 11
	OpLock              uint32 = 12
	OpLockT             uint32 = 13
	OpLockU             uint32 = 14
	OpLookup            uint32 = 15
	OpLookupP           uint32 = 16
	OpNVerify           uint32 = 17
	OpOpen              uint32 = 18
	OpOpenAttr          uint32 = 19
	OpOpenConfirm       uint32 = 20
	OpOpenDowngrade     uint32 = 21
	OpPutFH             uint32 = 22
	OpPutPubFH          uint32 = 23
	OpPutRootFH         uint32 = 24
	OpRead              uint32 = 25
	OpReadDir           uint32 = 26
	OpReadLink          uint32 = 27
	OpRemove            uint32 = 28
	OpRename            uint32 = 29
	OpRenew             uint32 = 30
	OpRestoreFH         uint32 = 31
	OpSaveFH            uint32 = 32
	OpSecInfo           uint32 = 33
	OpSetAttr           uint32 = 34
	OpSetClientID       uint32 = 35
	OpSetClientIDConfirm uint32 = 36
	OpVerify            uint32 = 37
	OpWrite             uint32 = 38
	OpReleaseLockOwner  uint32 = 39
	OpIllegal           uint32 = 10044
)

// MinOpcode/MaxOpcode bound the valid NFSv4.0 opnum range (excluding the
// reserved OP_ILLEGAL sentinel, which is never sent by a client).
const (
	MinOpcode uint32 = 3
	MaxOpcode uint32 = 39
)

// nfsstat4 values (RFC 7530 §13.2), in their defined numeric order.
const (
	NFS4OK                   uint32 = 0
	NFS4ErrPerm              uint32 = 1
	NFS4ErrNoEnt             uint32 = 2
	NFS4ErrIO                uint32 = 5
	NFS4ErrNXIO              uint32 = 6
	NFS4ErrAccess            uint32 = 13
	NFS4ErrExist             uint32 = 17
	NFS4ErrXDev              uint32 = 18
	NFS4ErrNotDir            uint32 = 20
	NFS4ErrIsDir             uint32 = 21
	NFS4ErrInval             uint32 = 22
	NFS4ErrFBig              uint32 = 27
	NFS4ErrNoSpc             uint32 = 28
	NFS4ErrROFS              uint32 = 30
	NFS4ErrMlink             uint32 = 31
	NFS4ErrNameTooLong       uint32 = 63
	NFS4ErrNotEmpty          uint32 = 66
	NFS4ErrDQuot             uint32 = 69
	NFS4ErrStale             uint32 = 70
	NFS4ErrBadHandle         uint32 = 10001
	NFS4ErrBadCookie         uint32 = 10003
	NFS4ErrNotSupp           uint32 = 10004
	NFS4ErrTooSmall          uint32 = 10005
	NFS4ErrServerFault       uint32 = 10006
	NFS4ErrBadType           uint32 = 10007
	NFS4ErrDelay             uint32 = 10008
	NFS4ErrSame              uint32 = 10009
	NFS4ErrDenied            uint32 = 10010
	NFS4ErrExpired           uint32 = 10011
	NFS4ErrLocked            uint32 = 10012
	NFS4ErrGrace             uint32 = 10013
	NFS4ErrFHExpired         uint32 = 10014
	NFS4ErrShareDenied       uint32 = 10015
	NFS4ErrWrongSec          uint32 = 10016
	NFS4ErrClidInUse         uint32 = 10017
	NFS4ErrResource          uint32 = 10018
	NFS4ErrMoved             uint32 = 10019
	NFS4ErrNoFileHandle      uint32 = 10020
	NFS4ErrMinorVersMismatch uint32 = 10021
	NFS4ErrStaleClientID     uint32 = 10022
	NFS4ErrStaleStateID      uint32 = 10023
	NFS4ErrOldStateID        uint32 = 10024
	NFS4ErrBadStateID        uint32 = 10025
	NFS4ErrBadSeqid          uint32 = 10026
	NFS4ErrNotSame           uint32 = 10027
	NFS4ErrLockRange         uint32 = 10028
	NFS4ErrSymlink           uint32 = 10029
	NFS4ErrRestoreFH         uint32 = 10030
	NFS4ErrLeaseMoved        uint32 = 10031
	NFS4ErrAttrNotSupp       uint32 = 10032
	NFS4ErrNoGrace           uint32 = 10033
	NFS4ErrReclaimBad        uint32 = 10034
	NFS4ErrReclaimConflict   uint32 = 10035
	NFS4ErrBadXDR            uint32 = 10036
	NFS4ErrLocksHeld         uint32 = 10037
	NFS4ErrOpenMode          uint32 = 10038
	NFS4ErrBadOwner          uint32 = 10039
	NFS4ErrBadChar           uint32 = 10040
	NFS4ErrBadName           uint32 = 10041
	NFS4ErrBadRange          uint32 = 10042
	NFS4ErrLockNotSupp       uint32 = 10043
	NFS4ErrOpIllegal         uint32 = 10044
	NFS4ErrDeadlock          uint32 = 10045
	NFS4ErrFileOpen          uint32 = 10046
	NFS4ErrAdminRevoked      uint32 = 10047
	NFS4ErrCBPathDown        uint32 = 10048
)

// OPEN result flags (RFC 7530 §16.16.5).
const (
	Open4ResultConfirm uint32 = 1 << 1
)

// createmode4 values.
const (
	Unchecked4 uint32 = 0
	Guarded4   uint32 = 1
	Exclusive4 uint32 = 2
)

// opentype4 values.
const (
	Open4NoCreate uint32 = 0
	Open4Create   uint32 = 1
)

// OPEN claim types. Only CLAIM_NULL is defined and served; OPEN answers any
// other claim type with NFS4ERR_NOTSUPP without decoding its body.
const (
	ClaimNull uint32 = 0
)

// share_access / share_deny bits (only the bottom three bits are defined).
const (
	ShareAccessRead  uint32 = 1
	ShareAccessWrite uint32 = 2
	ShareAccessBoth  uint32 = 3
	ShareDenyNone    uint32 = 0
	ShareDenyRead    uint32 = 1
	ShareDenyWrite   uint32 = 2
	ShareDenyBoth    uint32 = 3
)

// stable_how4 values for WRITE/COMMIT.
const (
	Unstable4  uint32 = 0
	DataSync4  uint32 = 1
	FileSync4  uint32 = 2
)

// nfs_lock_type4 values (RFC 7530 §13.1): the two "W" variants are the
// blocking forms a client uses to ask the server to hold the request
// pending the conflicting lock's release, which this server does not do
// (LOCK returns NFS4ERR_DENIED immediately either way).
const (
	ReadLT   uint32 = 1
	WriteLT  uint32 = 2
	ReadwLT  uint32 = 3
	WritewLT uint32 = 4
)
