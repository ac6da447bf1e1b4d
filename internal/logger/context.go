package logger

import (
	"context"
	"time"
)

type logCtxKey struct{}

// LogContext carries the fields that identify a single RPC request as it
// flows through the COMPOUND dispatcher, so every log line emitted while
// handling that request can be tied back to it without threading a dozen
// parameters through every handler signature.
type LogContext struct {
	TraceID    string
	Procedure  string
	ClientAddr string
	UID        uint32
	GID        uint32
	start      time.Time
}

// NewLogContext creates a LogContext stamped with the current time, used to
// compute KeyDurationMs when the request completes.
func NewLogContext(traceID string) *LogContext {
	return &LogContext{TraceID: traceID, start: time.Now()}
}

// Clone returns a copy of lc so a derived context can add fields without
// mutating the parent's.
func (lc *LogContext) Clone() *LogContext {
	cp := *lc
	return &cp
}

// WithProcedure sets the RPC procedure name (e.g. "COMPOUND").
func (lc *LogContext) WithProcedure(procedure string) *LogContext {
	cp := lc.Clone()
	cp.Procedure = procedure
	return cp
}

// WithAuth sets the AUTH_UNIX identity fields.
func (lc *LogContext) WithAuth(uid, gid uint32) *LogContext {
	cp := lc.Clone()
	cp.UID = uid
	cp.GID = gid
	return cp
}

// WithClientAddr sets the remote peer address.
func (lc *LogContext) WithClientAddr(addr string) *LogContext {
	cp := lc.Clone()
	cp.ClientAddr = addr
	return cp
}

// DurationMs reports elapsed milliseconds since the LogContext was created.
func (lc *LogContext) DurationMs() float64 {
	return float64(time.Since(lc.start).Microseconds()) / 1000.0
}

func (lc *LogContext) slogArgs() []any {
	args := make([]any, 0, 10)
	if lc.TraceID != "" {
		args = append(args, KeyTraceID, lc.TraceID)
	}
	if lc.Procedure != "" {
		args = append(args, KeyProcedure, lc.Procedure)
	}
	if lc.ClientAddr != "" {
		args = append(args, KeyClientAddr, lc.ClientAddr)
	}
	if lc.UID != 0 || lc.GID != 0 {
		args = append(args, KeyUID, lc.UID, KeyGID, lc.GID)
	}
	return args
}

// WithContext attaches lc to ctx so FromContext can recover it downstream.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logCtxKey{}, lc)
}

// FromLogContext returns lc's fields as slog key-value pairs, for callers
// that want to pass them directly to a slog call instead of going through
// FromContext.
func FromLogContext(lc *LogContext) []any {
	if lc == nil {
		return nil
	}
	return lc.slogArgs()
}
