// Package server accepts TCP connections carrying ONC RPC program 100003
// version 4 (NFS) calls, frames/deframes them via internal/rpc, and hands
// each COMPOUND to internal/nfs4/handlers, grounded on the teacher's
// pkg/adapter/nfs NFSAdapter/NFSConnection pair, trimmed to the single
// NFSv4-only, AUTH_SYS-only, fixed-port listener this server needs (no
// NFSv3, no MOUNT/NLM/NSM, no RPCSEC_GSS, no portmap registration).
package server

import "time"

// NFSProgram and NFSVersion4 identify the ONC RPC program/version this
// listener accepts; any other program or version number is rejected with
// the matching RFC 5531 reply before any NFSv4 decoding runs.
const (
	NFSProgram  uint32 = 100003
	NFSVersion4 uint32 = 4
)

// NFS procedure numbers within program 100003 version 4. NFSv4 collapses
// the entire per-operation procedure table into these two: NULL for
// liveness checks, COMPOUND for everything else.
const (
	ProcNull     uint32 = 0
	ProcCompound uint32 = 1
)

// Timeouts groups the deadlines applied to each accepted connection.
type Timeouts struct {
	// Read bounds how long a read of one RPC record may take. Zero disables
	// the deadline.
	Read time.Duration
	// Write bounds how long writing one RPC reply may take. Zero disables
	// the deadline.
	Write time.Duration
	// Idle is set as the connection's read and write deadline after each
	// request completes. Before waiting for the next record the connection
	// replaces the read deadline with Read whenever Read is nonzero, so with
	// both set (as in DefaultConfig) a connection with no request in flight
	// is closed once Read elapses. Zero disables the deadline.
	Idle time.Duration
}

// Config controls a Server's listener and the per-connection behavior it
// hands to every accepted Connection.
type Config struct {
	// Addr is the TCP address to listen on, e.g. ":2049" or "127.0.0.1:2049".
	Addr string

	// MaxRequestsPerConnection bounds how many COMPOUNDs from the same
	// connection may be in flight at once. NFSv4 clients rarely pipeline
	// more than a handful, so a small number already gives headroom.
	MaxRequestsPerConnection int

	// MaxConnections bounds total concurrently accepted connections. Zero
	// means unlimited.
	MaxConnections int

	Timeouts Timeouts
}

// DefaultConfig mirrors the teacher's NFS adapter defaults, scaled down to
// this server's narrower scope.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:                     addr,
		MaxRequestsPerConnection: 32,
		MaxConnections:           0,
		Timeouts: Timeouts{
			Read:  30 * time.Second,
			Write: 30 * time.Second,
			Idle:  5 * time.Minute,
		},
	}
}
