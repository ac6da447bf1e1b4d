// Package osfs backs an exported NFSv4 tree with the real local
// filesystem, grounded on the teacher's direct os/golang.org/x/sys/unix
// usage for POSIX stat fields rather than its full metadata-service
// abstraction.
package osfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/leruetkins/bold-nfs/internal/vfs"
)

// FS exports the directory tree rooted at a single host directory.
type FS struct {
	root     vfs.Path
	hostRoot string
}

// New returns an FS rooted at hostDir. hostDir must already exist and be a
// directory.
func New(hostDir string) (*FS, error) {
	abs, err := filepathAbs(hostDir)
	if err != nil {
		return nil, fmt.Errorf("osfs: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("osfs: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("osfs: root %q is not a directory", abs)
	}
	return &FS{root: "/", hostRoot: abs}, nil
}

func filepathAbs(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	return filepath.Abs(p)
}

func (f *FS) Root() vfs.Path { return f.root }

// hostPath maps an exported path to its location on the host filesystem.
// Cleaning against a leading "/" keeps every path inside the export root
// ("/../x" becomes "/x"); a cleaned path that still contains ".." anywhere
// is rejected.
func (f *FS) hostPath(p vfs.Path) (string, error) {
	clean := path.Clean("/" + string(p))
	if clean == "." {
		clean = "/"
	}
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("osfs: path %q escapes export root", p)
	}
	return path.Join(f.hostRoot, clean), nil
}

func (f *FS) Exists(p vfs.Path) bool {
	hp, err := f.hostPath(p)
	if err != nil {
		return false
	}
	_, err = os.Lstat(hp)
	return err == nil
}

func (f *FS) Metadata(p vfs.Path) (vfs.Metadata, error) {
	hp, err := f.hostPath(p)
	if err != nil {
		return vfs.Metadata{}, vfs.NewError(vfs.ErrInvalidName, "metadata", p, err)
	}
	info, err := os.Lstat(hp)
	if err != nil {
		return vfs.Metadata{}, mapStatError(p, err)
	}
	meta := metadataFromFileInfo(info)
	if st, err := statPath(hp); err == nil {
		applyUnixStat(&meta, st)
	}
	return meta, nil
}

func metadataFromFileInfo(info fs.FileInfo) vfs.Metadata {
	m := vfs.Metadata{
		Size:     uint64(info.Size()),
		HasMode:  true,
		Mode:     uint32(info.Mode().Perm()),
		ReadOnly: info.Mode().Perm()&0o200 == 0,
		MTime:    info.ModTime(),
		ATime:    info.ModTime(),
		CTime:    info.ModTime(),
	}

	switch {
	case info.IsDir():
		m.Type = vfs.TypeDirectory
	case info.Mode()&os.ModeSymlink != 0:
		m.Type = vfs.TypeSymlink
	case info.Mode()&(os.ModeDevice|os.ModeNamedPipe|os.ModeSocket|os.ModeCharDevice) != 0:
		m.Type = vfs.TypeSpecial
	default:
		m.Type = vfs.TypeRegular
	}

	return m
}

// applyUnixStat overlays the POSIX-only fields (owner, inode, link count,
// precise atime/ctime) that fs.FileInfo does not expose portably.
func applyUnixStat(m *vfs.Metadata, st *unixStat) {
	m.HasOwner = true
	m.UID = st.UID
	m.GID = st.GID
	m.HasIno = true
	m.Ino = st.Ino
	m.NLink = st.NLink
	m.ATime = st.ATime
	m.CTime = st.CTime
}

// unixStat is the normalized shape pulled out of unix.Stat_t, decoupling
// the rest of this file from platform-specific field widths.
type unixStat struct {
	UID, GID uint32
	Ino      uint64
	NLink    uint32
	ATime    time.Time
	CTime    time.Time
}

func statPath(hp string) (*unixStat, error) {
	var st unix.Stat_t
	if err := unix.Lstat(hp, &st); err != nil {
		return nil, err
	}
	return &unixStat{
		UID:   st.Uid,
		GID:   st.Gid,
		Ino:   st.Ino,
		NLink: uint32(st.Nlink),
		ATime: time.Unix(st.Atim.Sec, st.Atim.Nsec),
		CTime: time.Unix(st.Ctim.Sec, st.Ctim.Nsec),
	}, nil
}

// isNotDir reports whether err ultimately wraps ENOTDIR, the errno Linux
// returns whenever a path component expected to be a directory is not one
// (e.g. CREATE under a regular file's filehandle).
func isNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}

func mapStatError(p vfs.Path, err error) error {
	if os.IsNotExist(err) {
		return vfs.NewError(vfs.ErrNotExist, "stat", p, err)
	}
	if os.IsPermission(err) {
		return vfs.NewError(vfs.ErrPermission, "stat", p, err)
	}
	return vfs.NewError(vfs.ErrIO, "stat", p, err)
}

func (f *FS) Join(p vfs.Path, name string) vfs.Path {
	if p == "/" {
		return vfs.Path("/" + name)
	}
	return vfs.Path(string(p) + "/" + name)
}

func (f *FS) Parent(p vfs.Path) vfs.Path {
	if p == "/" {
		return "/"
	}
	dir := path.Dir(string(p))
	return vfs.Path(dir)
}

func (f *FS) Filename(p vfs.Path) string {
	return path.Base(string(p))
}

func (f *FS) ReadDir(p vfs.Path) ([]vfs.DirEntry, error) {
	hp, err := f.hostPath(p)
	if err != nil {
		return nil, vfs.NewError(vfs.ErrInvalidName, "read_dir", p, err)
	}
	entries, err := os.ReadDir(hp)
	if err != nil {
		return nil, mapStatError(p, err)
	}
	out := make([]vfs.DirEntry, 0, len(entries))
	for _, de := range entries {
		info, err := de.Info()
		if err != nil {
			continue
		}
		childPath, _ := f.hostPath(f.Join(p, de.Name()))
		meta := metadataFromFileInfo(info)
		if st, err := statPath(childPath); err == nil {
			applyUnixStat(&meta, st)
		}
		out = append(out, vfs.DirEntry{Name: de.Name(), Meta: meta})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *FS) OpenFile(p vfs.Path) (vfs.ReadSeekCloser, error) {
	hp, err := f.hostPath(p)
	if err != nil {
		return nil, vfs.NewError(vfs.ErrInvalidName, "open_file", p, err)
	}
	file, err := os.Open(hp)
	if err != nil {
		return nil, mapStatError(p, err)
	}
	return file, nil
}

func (f *FS) CreateFile(p vfs.Path) (vfs.WriteSeekCloser, error) {
	hp, err := f.hostPath(p)
	if err != nil {
		return nil, vfs.NewError(vfs.ErrInvalidName, "create_file", p, err)
	}
	file, err := os.OpenFile(hp, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, mapCreateError(p, err)
	}
	return file, nil
}

func mapCreateError(p vfs.Path, err error) error {
	if os.IsExist(err) {
		return vfs.NewError(vfs.ErrExist, "create", p, err)
	}
	if os.IsPermission(err) {
		return vfs.NewError(vfs.ErrPermission, "create", p, err)
	}
	if strings.Contains(err.Error(), "no space") {
		return vfs.NewError(vfs.ErrNoSpace, "create", p, err)
	}
	return vfs.NewError(vfs.ErrIO, "create", p, err)
}

func (f *FS) CreateDir(p vfs.Path) error {
	hp, err := f.hostPath(p)
	if err != nil {
		return vfs.NewError(vfs.ErrInvalidName, "create_dir", p, err)
	}
	if err := os.Mkdir(hp, 0o755); err != nil {
		if os.IsExist(err) {
			return vfs.NewError(vfs.ErrExist, "create_dir", p, err)
		}
		if isNotDir(err) {
			return vfs.NewError(vfs.ErrNotDir, "create_dir", p, err)
		}
		return vfs.NewError(vfs.ErrIO, "create_dir", p, err)
	}
	return nil
}

func (f *FS) Remove(p vfs.Path) error {
	hp, err := f.hostPath(p)
	if err != nil {
		return vfs.NewError(vfs.ErrInvalidName, "remove", p, err)
	}
	if err := os.Remove(hp); err != nil {
		if os.IsNotExist(err) {
			return vfs.NewError(vfs.ErrNotExist, "remove", p, err)
		}
		if strings.Contains(err.Error(), "not empty") {
			return vfs.NewError(vfs.ErrNotEmpty, "remove", p, err)
		}
		if isNotDir(err) {
			return vfs.NewError(vfs.ErrNotDir, "remove", p, err)
		}
		return vfs.NewError(vfs.ErrIO, "remove", p, err)
	}
	return nil
}

func (f *FS) Rename(src, dst vfs.Path) error {
	hsrc, err := f.hostPath(src)
	if err != nil {
		return vfs.NewError(vfs.ErrInvalidName, "rename", src, err)
	}
	hdst, err := f.hostPath(dst)
	if err != nil {
		return vfs.NewError(vfs.ErrInvalidName, "rename", dst, err)
	}
	if err := os.Rename(hsrc, hdst); err != nil {
		if isNotDir(err) {
			return vfs.NewError(vfs.ErrNotDir, "rename", src, err)
		}
		return vfs.NewError(vfs.ErrIO, "rename", src, err)
	}
	return nil
}

func (f *FS) SetLen(p vfs.Path, size uint64) error {
	hp, err := f.hostPath(p)
	if err != nil {
		return vfs.NewError(vfs.ErrInvalidName, "set_len", p, err)
	}
	if err := os.Truncate(hp, int64(size)); err != nil {
		return vfs.NewError(vfs.ErrIO, "set_len", p, err)
	}
	return nil
}

func (f *FS) SetPermissions(p vfs.Path, mode uint32) error {
	hp, err := f.hostPath(p)
	if err != nil {
		return vfs.NewError(vfs.ErrInvalidName, "set_permissions", p, err)
	}
	if err := os.Chmod(hp, fs.FileMode(mode&0o777)); err != nil {
		return vfs.NewError(vfs.ErrIO, "set_permissions", p, err)
	}
	return nil
}

func (f *FS) SetTimes(p vfs.Path, atime, mtime *time.Time) error {
	hp, err := f.hostPath(p)
	if err != nil {
		return vfs.NewError(vfs.ErrInvalidName, "set_times", p, err)
	}
	current, statErr := os.Stat(hp)
	if statErr != nil {
		return mapStatError(p, statErr)
	}
	at, mt := current.ModTime(), current.ModTime()
	if st, err := statPath(hp); err == nil {
		at = st.ATime
	}
	if atime != nil {
		at = *atime
	}
	if mtime != nil {
		mt = *mtime
	}
	if err := os.Chtimes(hp, at, mt); err != nil {
		return vfs.NewError(vfs.ErrIO, "set_times", p, err)
	}
	return nil
}
