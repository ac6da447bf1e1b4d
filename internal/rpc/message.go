package rpc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/leruetkins/bold-nfs/internal/xdr"
)

// OpaqueAuth is the flavor-tagged opaque credential or verifier carried on
// every RPC call and reply.
type OpaqueAuth struct {
	Flavor uint32
	Body   []byte
}

// CallBody is the decoded header of an RPC call message, RFC 5531 §8.
type CallBody struct {
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32
	Cred       OpaqueAuth
	Verf       OpaqueAuth
}

// CallMessage is a full decoded RPC call: the transaction id plus the body.
type CallMessage struct {
	XID  uint32
	Body CallBody
}

func decodeOpaqueAuth(r io.Reader) (OpaqueAuth, error) {
	flavor, err := xdr.DecodeUint32(r)
	if err != nil {
		return OpaqueAuth{}, fmt.Errorf("read auth flavor: %w", err)
	}
	body, err := xdr.DecodeOpaque(r)
	if err != nil {
		return OpaqueAuth{}, fmt.Errorf("read auth body: %w", err)
	}
	return OpaqueAuth{Flavor: flavor, Body: body}, nil
}

// DecodeCallMessage parses an RPC call message (header plus program body
// still attached in r) from a defragmented record.
func DecodeCallMessage(payload []byte) (*CallMessage, []byte, error) {
	r := bytes.NewReader(payload)

	xid, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: read xid: %w", err)
	}
	msgType, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: read msg type: %w", err)
	}
	if msgType != RPCCall {
		return nil, nil, fmt.Errorf("rpc: expected CALL message, got type %d", msgType)
	}

	rpcVersion, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: read rpcvers: %w", err)
	}
	program, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: read prog: %w", err)
	}
	version, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: read vers: %w", err)
	}
	procedure, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: read proc: %w", err)
	}
	cred, err := decodeOpaqueAuth(r)
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: read cred: %w", err)
	}
	verf, err := decodeOpaqueAuth(r)
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: read verf: %w", err)
	}

	remaining := payload[len(payload)-r.Len():]

	msg := &CallMessage{
		XID: xid,
		Body: CallBody{
			RPCVersion: rpcVersion,
			Program:    program,
			Version:    version,
			Procedure:  procedure,
			Cred:       cred,
			Verf:       verf,
		},
	}
	return msg, remaining, nil
}
