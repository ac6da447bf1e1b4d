// Package rpc implements the slice of ONC RPC (RFC 5531) that nfs4d needs
// to carry NFSv4 COMPOUND requests over TCP: record-marking framing, the
// call/reply message headers, and AUTH_SYS (AUTH_UNIX) credential parsing.
// It deliberately does not implement RPCSEC_GSS, AUTH_DES, or the portmap
// program-multiplexing machinery the full NFS stack needs, since nfs4d
// serves a single program/version pair on a dedicated listener.
package rpc

import (
	"fmt"
)

// Message types (RFC 5531 section 9).
const (
	RPCCall  uint32 = 0
	RPCReply uint32 = 1
)

// Reply states.
const (
	RPCMsgAccepted uint32 = 0
	RPCMsgDenied   uint32 = 1
)

// Accept statuses.
const (
	RPCSuccess      uint32 = 0
	RPCProgUnavail  uint32 = 1
	RPCProgMismatch uint32 = 2
	RPCProcUnavail  uint32 = 3
	RPCGarbageArgs  uint32 = 4
	RPCSystemErr    uint32 = 5
)

// Reject statuses, used when ReplyState is RPCMsgDenied.
const (
	RPCMismatch uint32 = 0
	RPCAuthErr  uint32 = 1
)

// Auth flavors (RFC 5531 section 9.2).
const (
	AuthNull  uint32 = 0
	AuthUnix  uint32 = 1
	AuthShort uint32 = 2
	AuthDES   uint32 = 3
)

// maxGIDs bounds the supplementary group list carried in an AUTH_UNIX
// credential; 16 matches the historical NGROUPS_MAX most NFS clients honor.
const maxGIDs = 16

// maxMachineNameLen bounds the machine-name field of an AUTH_UNIX
// credential to the RFC 5531 opaque<255> limit.
const maxMachineNameLen = 255

// UnixAuth is a parsed AUTH_UNIX (AUTH_SYS) credential.
type UnixAuth struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// String renders the credential for debug logging.
func (a *UnixAuth) String() string {
	return fmt.Sprintf("UnixAuth{machine=%s uid=%d gid=%d gids=%v}", a.MachineName, a.UID, a.GID, a.GIDs)
}
