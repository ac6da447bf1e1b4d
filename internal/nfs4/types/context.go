package types

import "context"

// ChangeInfo4 reports a directory's change attribute before and after a
// mutating operation, per RFC 7530 §7.4.
type ChangeInfo4 struct {
	Atomic bool
	Before uint64
	After  uint64
}

// LockDenied4 reports the conflicting range when LOCK or LOCKT fails with
// NFS4ERR_DENIED, per RFC 7530 §16.10.1's LOCK4denied.
type LockDenied4 struct {
	Offset   uint64
	Length   uint64
	LockType uint32
	ClientID uint64
	Owner    []byte
}

// ClientInfo carries the identity and transport details of the caller,
// extracted once per RPC call from its AUTH_UNIX credential.
type ClientInfo struct {
	UID        uint32
	GID        uint32
	GIDs       []uint32
	ClientAddr string
}

// FilehandleRef is the minimal view an operation handler needs of a
// filehandle: its wire id and the absolute VFS path it names. The File
// Manager is the source of truth; this is a snapshot taken when the
// handle was last fetched or created.
type FilehandleRef struct {
	ID   [16]byte
	Path string
}

// CompoundContext is threaded through every operation in a COMPOUND,
// mirroring spec.md §4.1's RequestContext: current/saved filehandle,
// client identity, and a back-reference to the file manager (typed as
// `any` here to avoid an import cycle between types and state; handlers
// assert it to *state.Manager).
type CompoundContext struct {
	Context          context.Context
	CurrentFilehandle *FilehandleRef
	SavedFilehandle   *FilehandleRef
	Client            ClientInfo
	Manager           any
	MinorVersion      uint32
}

// CompoundResult is one operation's encoded result: the opcode it answers,
// its status, and the XDR-encoded body (status already included per the
// nfs_resop4 union discriminant written by the caller).
type CompoundResult struct {
	Opcode uint32
	Status uint32
	Body   []byte
}
