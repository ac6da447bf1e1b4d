package server

import (
	"context"
	"io"
	"net"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/leruetkins/bold-nfs/internal/logger"
	"github.com/leruetkins/bold-nfs/internal/nfs4/handlers"
	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
	"github.com/leruetkins/bold-nfs/internal/rpc"
	"github.com/leruetkins/bold-nfs/internal/xdr"
)

// connection handles every RPC call arriving on one accepted TCP socket,
// grounded on the teacher's NFSConnection: synchronous per-connection
// processing (so dependent COMPOUNDs on the same connection never race),
// a bounded semaphore for pipelined requests, and panic recovery around
// each one so a single bad request cannot take the listener down.
type connection struct {
	server *Server
	conn   net.Conn
	sem    chan struct{}
}

func newConnection(s *Server, c net.Conn) *connection {
	limit := s.config.MaxRequestsPerConnection
	if limit <= 0 {
		limit = 1
	}
	return &connection{server: s, conn: c, sem: make(chan struct{}, limit)}
}

func (c *connection) serve(ctx context.Context) {
	addr := c.conn.RemoteAddr().String()
	defer c.close(addr)

	c.resetDeadline()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		record, err := c.readRecord()
		if err != nil {
			if err != io.EOF {
				logger.Get().Debug("connection read failed", logger.KeyClientAddr, addr, logger.KeyError, err.Error())
			}
			return
		}

		c.sem <- struct{}{}
		c.handleOne(ctx, addr, record)
		<-c.sem

		c.resetDeadline()
	}
}

func (c *connection) resetDeadline() {
	if c.server.config.Timeouts.Idle > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.server.config.Timeouts.Idle))
	}
}

func (c *connection) readRecord() ([]byte, error) {
	if t := c.server.config.Timeouts.Read; t > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(t))
	}
	return rpc.ReadRecord(c.conn)
}

// handleOne decodes, dispatches, and replies to a single RPC call, with
// panic recovery so a bug in one handler never crashes the connection.
func (c *connection) handleOne(ctx context.Context, addr string, record []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Get().Error("panic handling rpc call",
				logger.KeyClientAddr, addr, logger.KeyError, r, "stack", string(debug.Stack()))
		}
	}()

	call, remaining, err := rpc.DecodeCallMessage(record)
	if err != nil {
		logger.Get().Debug("malformed rpc call", logger.KeyClientAddr, addr, logger.KeyError, err.Error())
		return
	}

	if call.Body.Program != NFSProgram {
		c.writeReply(rpc.EncodeProgUnavailReply(call.XID))
		return
	}
	if call.Body.Version != NFSVersion4 {
		reply, err := rpc.MakeProgMismatchReply(call.XID, NFSVersion4, NFSVersion4)
		if err != nil {
			return
		}
		c.writeReply(reply)
		return
	}

	switch call.Body.Procedure {
	case ProcNull:
		c.writeReply(rpc.EncodeSuccessReply(call.XID, nil))
	case ProcCompound:
		c.handleCompound(ctx, addr, call, remaining)
	default:
		c.writeReply(rpc.EncodeProcUnavailReply(call.XID))
	}
}

func (c *connection) handleCompound(ctx context.Context, addr string, call *rpc.CallMessage, payload []byte) {
	client := clientInfoFromAuth(call.Body.Cred, addr)

	traceID := uuid.New().String()
	lc := logger.NewLogContext(traceID).WithProcedure("COMPOUND").WithClientAddr(addr).WithAuth(client.UID, client.GID)
	reqCtx := logger.WithContext(ctx, lc)

	req, err := handlers.DecodeCompoundRequest(payload)
	if err != nil {
		c.writeReply(rpc.EncodeGarbageArgsReply(call.XID))
		return
	}

	reply := handlers.RunCompound(reqCtx, c.server.manager, client, req.MinorVersion, req)
	c.server.metrics.ObserveCompound(statusLabel(reply.Status))
	logger.FromContext(reqCtx).Debug("compound complete",
		logger.KeyStatus, reply.Status, logger.KeyDurationMs, lc.DurationMs())

	c.writeReply(rpc.EncodeSuccessReply(call.XID, encodeCompoundReply(req.Tag, reply)))
}

func (c *connection) writeReply(framed []byte) {
	if t := c.server.config.Timeouts.Write; t > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(t))
	}
	if _, err := c.conn.Write(framed); err != nil {
		logger.Get().Debug("write reply failed", logger.KeyClientAddr, c.conn.RemoteAddr().String(), logger.KeyError, err.Error())
	}
}

func (c *connection) close(addr string) {
	_ = c.conn.Close()
	logger.Get().Debug("connection closed", logger.KeyClientAddr, addr)
}

// encodeCompoundReply serializes a COMPOUND4res: status, tag, and the
// resarray of already-encoded nfs_resop4 entries.
func encodeCompoundReply(tag string, reply handlers.CompoundReply) []byte {
	e := xdr.NewEncoder()
	e.WriteUint32(reply.Status)
	e.WriteString(tag)
	e.WriteUint32(uint32(len(reply.Results)))
	for _, res := range reply.Results {
		e.WriteRaw(res.Body)
	}
	return e.Bytes()
}

// clientInfoFromAuth extracts the caller's identity from an AUTH_UNIX
// credential; any other flavor (including AUTH_NONE) is treated as
// anonymous, matching spec.md's AUTH_SYS-only scope.
func clientInfoFromAuth(cred rpc.OpaqueAuth, addr string) types.ClientInfo {
	info := types.ClientInfo{ClientAddr: addr}
	if cred.Flavor != rpc.AuthUnix {
		return info
	}
	unix, err := rpc.ParseUnixAuth(cred.Body)
	if err != nil {
		return info
	}
	info.UID = unix.UID
	info.GID = unix.GID
	info.GIDs = unix.GIDs
	return info
}

func statusLabel(status uint32) string {
	if status == types.NFS4OK {
		return "OK"
	}
	return strconv.FormatUint(uint64(status), 10)
}
