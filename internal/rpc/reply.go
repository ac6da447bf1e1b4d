package rpc

import (
	"fmt"

	"github.com/leruetkins/bold-nfs/internal/xdr"
)

// lastFragmentBit marks the final (and here, only) fragment of a record in
// the record-marking header nfs4d writes ahead of every reply.
const lastFragmentBit uint32 = 0x80000000

// frame wraps payload with a single-fragment record-marking header.
func frame(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	header := lastFragmentBit | uint32(len(payload))
	out[0] = byte(header >> 24)
	out[1] = byte(header >> 16)
	out[2] = byte(header >> 8)
	out[3] = byte(header)
	copy(out[4:], payload)
	return out
}

func acceptedReplyHeader(xid uint32) *xdr.Encoder {
	e := xdr.NewEncoder()
	e.WriteUint32(xid)
	e.WriteUint32(RPCReply)
	e.WriteUint32(RPCMsgAccepted)
	// verifier: AUTH_NONE, zero-length body
	e.WriteUint32(AuthNull)
	e.WriteUint32(0)
	return e
}

// EncodeSuccessReply frames an accepted, successful reply carrying an
// already-encoded program result body (e.g. a COMPOUND4res).
func EncodeSuccessReply(xid uint32, resultBody []byte) []byte {
	e := acceptedReplyHeader(xid)
	e.WriteUint32(RPCSuccess)
	e.WriteRaw(resultBody)
	return frame(e.Bytes())
}

// EncodeProcUnavailReply frames an accepted reply reporting that the
// requested procedure number does not exist on the bound program/version.
func EncodeProcUnavailReply(xid uint32) []byte {
	e := acceptedReplyHeader(xid)
	e.WriteUint32(RPCProcUnavail)
	return frame(e.Bytes())
}

// EncodeGarbageArgsReply frames an accepted reply reporting that the call
// body could not be decoded as the expected argument type.
func EncodeGarbageArgsReply(xid uint32) []byte {
	e := acceptedReplyHeader(xid)
	e.WriteUint32(RPCGarbageArgs)
	return frame(e.Bytes())
}

// EncodeSystemErrReply frames an accepted reply reporting a server-side
// failure unrelated to the validity of the call itself.
func EncodeSystemErrReply(xid uint32) []byte {
	e := acceptedReplyHeader(xid)
	e.WriteUint32(RPCSystemErr)
	return frame(e.Bytes())
}

// EncodeProgUnavailReply frames an accepted reply reporting that the
// requested program number is not served here.
func EncodeProgUnavailReply(xid uint32) []byte {
	e := acceptedReplyHeader(xid)
	e.WriteUint32(RPCProgUnavail)
	return frame(e.Bytes())
}

// MakeProgMismatchReply frames an accepted reply reporting that the
// requested program is served, but not at the requested version, along
// with the [low, high] version range this server does support.
func MakeProgMismatchReply(xid, low, high uint32) ([]byte, error) {
	if low > high {
		return nil, fmt.Errorf("rpc: invalid version range: low (%d) > high (%d)", low, high)
	}
	e := acceptedReplyHeader(xid)
	e.WriteUint32(RPCProgMismatch)
	e.WriteUint32(low)
	e.WriteUint32(high)
	return frame(e.Bytes()), nil
}

// EncodeAuthErrorReply frames a denied reply reporting a credential or
// verifier rejection (e.g. an unsupported auth flavor).
func EncodeAuthErrorReply(xid, authStat uint32) []byte {
	e := xdr.NewEncoder()
	e.WriteUint32(xid)
	e.WriteUint32(RPCReply)
	e.WriteUint32(RPCMsgDenied)
	e.WriteUint32(RPCAuthErr)
	e.WriteUint32(authStat)
	return frame(e.Bytes())
}
