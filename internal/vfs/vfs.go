// Package vfs defines the narrow filesystem abstraction the File Manager
// consumes, and is implemented by internal/vfs/osfs (the real local
// filesystem) and internal/vfs/memfs (an in-memory tree for tests).
package vfs

import (
	"io"
	"time"
)

// Path is an absolute path within an exported tree, using forward slashes
// regardless of host OS conventions.
type Path string

// FileType enumerates the object kinds the NFSv4 attribute model needs to
// distinguish.
type FileType int

const (
	TypeRegular FileType = iota
	TypeDirectory
	TypeSymlink
	TypeSpecial
)

// Metadata is the attribute snapshot the File Manager stores alongside a
// filehandle record and uses to synthesize fattr4 values. Fields guarded
// by a Has* flag are absent on backends that cannot supply them (e.g. an
// in-memory or non-POSIX-backed tree); callers must check the flag before
// trusting the zero value.
type Metadata struct {
	Type FileType
	Size uint64

	// HasMode is true when Mode carries real POSIX permission bits. When
	// false, callers synthesize a mode from ReadOnly and Type instead.
	HasMode bool
	Mode    uint32

	// HasOwner is true when UID/GID were read from the backend. When
	// false, callers default both to 0.
	HasOwner bool
	UID      uint32
	GID      uint32

	ReadOnly bool

	ATime time.Time
	MTime time.Time
	CTime time.Time

	// HasIno is true on backends that expose a stable inode number,
	// usable directly as the NFSv4 FILEID attribute.
	HasIno bool
	Ino    uint64

	NLink uint32
}

// DirEntry is one child returned by ReadDir.
type DirEntry struct {
	Name string
	Meta Metadata
}

// ReadSeekCloser is the handle returned by OpenFile.
type ReadSeekCloser interface {
	io.Reader
	io.Seeker
	io.Closer
}

// WriteSeekCloser is the handle returned by CreateFile; WRITE accepts an
// explicit offset per call, hence Seeker rather than plain Writer.
type WriteSeekCloser interface {
	io.Writer
	io.Seeker
	io.Closer
}

// FS is the backend contract the File Manager is built against. A single
// FS value represents one exported tree rooted at Root().
type FS interface {
	Root() Path

	// Exists reports whether p names an object, without following a
	// trailing symlink.
	Exists(p Path) bool

	// Metadata stats p. It does not follow a trailing symlink.
	Metadata(p Path) (Metadata, error)

	Join(p Path, name string) Path
	Parent(p Path) Path
	Filename(p Path) string

	ReadDir(p Path) ([]DirEntry, error)

	OpenFile(p Path) (ReadSeekCloser, error)
	CreateFile(p Path) (WriteSeekCloser, error)
	CreateDir(p Path) error
	Remove(p Path) error
	Rename(src, dst Path) error

	SetLen(p Path, size uint64) error
	SetPermissions(p Path, mode uint32) error
	// SetTimes updates atime/mtime; a nil argument leaves that time
	// unchanged.
	SetTimes(p Path, atime, mtime *time.Time) error
}
