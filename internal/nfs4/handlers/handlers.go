// Package handlers implements the COMPOUND dispatcher and one function per
// supported NFSv4.0 opcode, grounded on the teacher's
// internal/protocol/nfs/v4 operation table: a dispatch map keyed by opcode,
// each entry a pure function over a *types.CompoundContext plus the raw
// argument bytes for that operation.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/leruetkins/bold-nfs/internal/logger"
	"github.com/leruetkins/bold-nfs/internal/metrics"
	"github.com/leruetkins/bold-nfs/internal/nfs4/state"
	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
	"github.com/leruetkins/bold-nfs/internal/xdr"
)

// recorder receives per-operation counters and latencies. Set once at
// startup via SetMetrics; a nil recorder (the default) makes every
// observation a no-op, so tests never need to configure one.
var recorder *metrics.Recorder

// SetMetrics installs the Recorder every handler call reports to.
func SetMetrics(r *metrics.Recorder) {
	recorder = r
}

// readOnly gates every mutating operation when the server was started with
// --read-only. Checked at the top of each mutating handler rather than in
// the dispatcher, since READ/GETATTR/LOOKUP and friends must still work.
var readOnly atomic.Bool

// SetReadOnly toggles whether CREATE/REMOVE/RENAME/LINK/SETATTR/WRITE/OPEN
// (create path) are rejected with NFS4ERR_ROFS.
func SetReadOnly(v bool) {
	readOnly.Store(v)
}

func isReadOnly() bool {
	return readOnly.Load()
}

// MaxCompoundOps bounds how many operations a single COMPOUND may carry,
// matching spec.md §2's implementation budget and protecting the server
// from a pathologically long argop array.
const MaxCompoundOps = 128

// opHandler decodes its own arguments from r, executes against ctx, and
// returns the encoded nfs_resop4 body (opcode-specific result already
// serialized, status prefix NOT included — the dispatcher prepends it).
type opHandler func(ctx *types.CompoundContext, r *bytes.Reader) (status uint32, body []byte, err error)

var dispatch = map[uint32]opHandler{
	types.OpAccess:            opAccess,
	types.OpClose:             opClose,
	types.OpCommit:            opCommit,
	types.OpCreate:            opCreate,
	types.OpGetAttr:           opGetAttr,
	types.OpGetFH:             opGetFH,
	types.OpLink:              opLink,
	types.OpLock:              opLock,
	types.OpLockT:             opLockT,
	types.OpLockU:             opLockU,
	types.OpLookup:            opLookup,
	types.OpLookupP:           opLookupP,
	types.OpNVerify:           opNVerify,
	types.OpOpen:              opOpen,
	types.OpOpenConfirm:       opOpenConfirm,
	types.OpPutFH:             opPutFH,
	types.OpPutPubFH:          opPutRootFH,
	types.OpPutRootFH:         opPutRootFH,
	types.OpRead:              opRead,
	types.OpReadDir:           opReadDir,
	types.OpReadLink:          opReadLink,
	types.OpRemove:            opRemove,
	types.OpRename:            opRename,
	types.OpRestoreFH:         opRestoreFH,
	types.OpSaveFH:            opSaveFH,
	types.OpSecInfo:           opSecInfo,
	types.OpSetAttr:           opSetAttr,
	types.OpSetClientID:       opSetClientID,
	types.OpSetClientIDConfirm: opSetClientIDConfirm,
	types.OpVerify:            opVerify,
	types.OpWrite:             opWrite,
	types.OpReleaseLockOwner:  opReleaseLockOwner,
}

// CompoundRequest is one decoded COMPOUND call, grounded on the teacher's
// protocol.nfs.v4.CompoundRequest.
type CompoundRequest struct {
	Tag          string
	MinorVersion uint32
	Ops          []uint32
	Args         *bytes.Reader
}

// DecodeCompoundRequest parses the COMPOUND4args body (tag, minorversion,
// argarray) from payload, leaving the per-operation argument reader
// positioned right after the opcode count so RunCompound can decode each
// op's opcode and arguments one at a time.
func DecodeCompoundRequest(payload []byte) (*CompoundRequest, error) {
	r := bytes.NewReader(payload)
	tag, err := xdr.DecodeString(r)
	if err != nil {
		return nil, err
	}
	minorVersion, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	count, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	if count > MaxCompoundOps {
		count = MaxCompoundOps + 1 // force NFS4ERR_RESOURCE at dispatch time
	}
	return &CompoundRequest{Tag: tag, MinorVersion: minorVersion, Ops: make([]uint32, count), Args: r}, nil
}

// CompoundReply is the fully encoded result of running a COMPOUND: the
// overall status (the first non-OK operation's status, or OK) and the
// encoded resarray.
type CompoundReply struct {
	Status  uint32
	Results []types.CompoundResult
}

// RunCompound executes req's operations in order against a fresh manager
// binding, per spec.md §4.1's dispatch rule: stop at the first non-OK
// status, the COMPOUND's top-level status is that operation's status.
func RunCompound(parent context.Context, mgr *state.Manager, client types.ClientInfo, minorVersion uint32, req *CompoundRequest) CompoundReply {
	ctx := &types.CompoundContext{
		Context:      parent,
		Client:       client,
		Manager:      mgr,
		MinorVersion: minorVersion,
	}

	reply := CompoundReply{Status: types.NFS4OK}
	if minorVersion != 0 {
		reply.Status = types.NFS4ErrMinorVersMismatch
		return reply
	}
	if len(req.Ops) > MaxCompoundOps {
		reply.Status = types.NFS4ErrResource
		return reply
	}

	log := logger.FromContext(parent)

	for i := range req.Ops {
		opcode, err := xdr.DecodeUint32(req.Args)
		if err != nil {
			reply.Status = types.NFS4ErrBadXDR
			break
		}

		handler, ok := dispatch[opcode]
		if !ok {
			status := types.NFS4ErrOpIllegal
			if opcode >= types.MinOpcode && opcode <= types.MaxOpcode {
				status = types.NFS4ErrNotSupp
			}
			resOp := opcode
			if status == types.NFS4ErrOpIllegal {
				resOp = types.OpIllegal
			}
			reply.Results = append(reply.Results, types.CompoundResult{Opcode: opcode, Status: status, Body: encodeOpResult(resOp, status, nil)})
			reply.Status = status
			break
		}

		opStart := time.Now()
		status, body, err := handler(ctx, req.Args)
		recorder.ObserveOp(strconv.FormatUint(uint64(opcode), 10), strconv.FormatUint(uint64(status), 10), time.Since(opStart).Seconds())
		if err != nil {
			log.Warn("operation handler failed", logger.KeyOpcode, opcode, logger.KeyError, err.Error())
			status = types.NFS4ErrServerFault
		}

		fullBody := encodeOpResult(opcode, status, body)
		reply.Results = append(reply.Results, types.CompoundResult{Opcode: opcode, Status: status, Body: fullBody})
		reply.Status = status

		if status != types.NFS4OK {
			break
		}
		_ = i
	}

	return reply
}

// encodeOpResult prepends the nfs_resop4 discriminant (opcode) and the
// per-operation status ahead of body, matching the union layout every
// *_res4 struct shares.
func encodeOpResult(opcode, status uint32, body []byte) []byte {
	e := xdr.NewEncoder()
	e.WriteUint32(opcode)
	e.WriteUint32(status)
	e.WriteRaw(body)
	return e.Bytes()
}

// managerOf asserts ctx's Manager back to its concrete type; every handler
// in this package goes through it instead of repeating the assertion.
func managerOf(ctx *types.CompoundContext) *state.Manager {
	return ctx.Manager.(*state.Manager)
}

// currentPath requires ctx to have a current filehandle and returns its
// VFS path, or NFS4ERR_NOFILEHANDLE.
func currentPath(ctx *types.CompoundContext) (string, uint32) {
	if ctx.CurrentFilehandle == nil {
		return "", types.NFS4ErrNoFileHandle
	}
	return ctx.CurrentFilehandle.Path, types.NFS4OK
}

// statusFromStateErr extracts the nfsstat4 an operation should report for
// err: a *state.StateError carries one explicitly; a *vfs.Error is mapped
// through the standard table; anything else falls back to the caller's
// best guess for the situation it was checking.
func statusFromStateErr(err error, fallback uint32) uint32 {
	var stateErr *state.StateError
	if errors.As(err, &stateErr) {
		return stateErr.Status
	}
	if mapped := types.MapVFSErrorToNFS4(err); mapped != types.NFS4ErrServerFault {
		return mapped
	}
	return fallback
}
