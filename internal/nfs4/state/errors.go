package state

import (
	"fmt"

	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
)

// StateError carries an nfsstat4 value directly, for failures that are
// about state-machine validity rather than a VFS-level problem (so
// handlers don't have to reverse-engineer a status from a generic error).
type StateError struct {
	Status  uint32
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state: %s", e.Message)
}

func newStateError(status uint32, format string, args ...any) *StateError {
	return &StateError{Status: status, Message: fmt.Sprintf(format, args...)}
}

func newStateErrorClidInUse() *StateError {
	return newStateError(types.NFS4ErrClidInUse, "clientid unknown or verifier mismatch")
}
