package types

import (
	"errors"
	"unicode/utf8"

	"github.com/leruetkins/bold-nfs/internal/vfs"
)

// MapVFSErrorToNFS4 translates a vfs.Error's category into the matching
// nfsstat4 value. Any other error (a bug surfacing a raw OS error) maps to
// NFS4ERR_SERVERFAULT rather than being propagated to the wire.
func MapVFSErrorToNFS4(err error) uint32 {
	if err == nil {
		return NFS4OK
	}
	var vErr *vfs.Error
	if !errors.As(err, &vErr) {
		return NFS4ErrServerFault
	}
	switch vErr.Code {
	case vfs.ErrNotExist:
		return NFS4ErrNoEnt
	case vfs.ErrExist:
		return NFS4ErrExist
	case vfs.ErrNotDir:
		return NFS4ErrNotDir
	case vfs.ErrIsDir:
		return NFS4ErrIsDir
	case vfs.ErrNotEmpty:
		return NFS4ErrNotEmpty
	case vfs.ErrPermission:
		return NFS4ErrAccess
	case vfs.ErrNoSpace:
		return NFS4ErrNoSpc
	case vfs.ErrNameTooLong:
		return NFS4ErrNameTooLong
	case vfs.ErrInvalidName:
		return NFS4ErrInval
	case vfs.ErrReadOnly:
		return NFS4ErrROFS
	case vfs.ErrCrossDevice:
		return NFS4ErrXDev
	case vfs.ErrIO:
		return NFS4ErrIO
	default:
		return NFS4ErrServerFault
	}
}

// ValidateUTF8Filename enforces the filename constraints RFC 7530 §14
// imposes on the `component4` type: non-empty, valid UTF-8, no embedded
// NUL or path separator, and within the 255-byte component limit. Returns
// NFS4_OK when the name passes.
func ValidateUTF8Filename(name string) uint32 {
	if name == "" {
		return NFS4ErrInval
	}
	if !utf8.ValidString(name) {
		return NFS4ErrBadChar
	}
	for _, r := range name {
		if r == 0 {
			return NFS4ErrBadChar
		}
		if r == '/' {
			return NFS4ErrBadName
		}
	}
	if len(name) > 255 {
		return NFS4ErrNameTooLong
	}
	return NFS4OK
}
