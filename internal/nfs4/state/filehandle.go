package state

import (
	"sync"
	"time"

	"github.com/leruetkins/bold-nfs/internal/vfs"
)

// Filehandle is the File Manager's record for one filesystem object:
// spec.md §3's "(id, path, vfs_handle, metadata_snapshot, locks)" tuple.
// Path is the canonical absolute path within the exported tree; Opens
// holds every live open/lock state attached to this object, keyed by its
// stateid "other" field.
type Filehandle struct {
	mu sync.Mutex

	ID   [16]byte
	Path vfs.Path
	Meta vfs.Metadata

	Opens map[[12]byte]*OpenState

	// Removed is set once the underlying path has been unlinked; a
	// filehandle with no open Opens is evicted entirely, but one with
	// live state lingers (spec.md §3 "cannot be silently evicted").
	Removed bool
}

// Snapshot returns a value copy of the metadata currently cached on fh,
// safe to read without holding fh's lock afterward.
func (fh *Filehandle) Snapshot() vfs.Metadata {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	return fh.Meta
}

func (fh *Filehandle) setMeta(meta vfs.Metadata) {
	fh.mu.Lock()
	fh.Meta = meta
	fh.mu.Unlock()
}

func (fh *Filehandle) hasOpenState() bool {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	return len(fh.Opens) > 0
}

// OpenState is spec.md §3's open/lock state record.
type OpenState struct {
	Other        [12]byte
	Seqid        uint32
	ClientID     uint64
	Owner        []byte
	ShareAccess  uint32
	ShareDeny    uint32
	Confirmed    bool
	Verifier     *uint64
	FilehandleID [16]byte
	CreatedAt    time.Time
}

// ClientRecord is spec.md §3's minimal client record: enough to scope
// stateids to a SETCLIENTID-established identity, with no lease-expiry
// recovery machinery beyond what OPEN_CONFIRM needs.
type ClientRecord struct {
	ClientID  uint64
	Verifier  [8]byte
	Owner     []byte
	Confirmed bool
	LastSeen  time.Time
}
