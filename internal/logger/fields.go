package logger

// Standard field keys used across request-handling log lines so that log
// aggregation can key on a stable name regardless of which package emits
// the line.
const (
	KeyTraceID    = "trace_id"
	KeyProcedure  = "procedure"
	KeyOpcode     = "opcode"
	KeyHandle     = "filehandle"
	KeyClientAddr = "client_addr"
	KeyUID        = "uid"
	KeyGID        = "gid"
	KeyStatus     = "status"
	KeyPath       = "path"
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)
