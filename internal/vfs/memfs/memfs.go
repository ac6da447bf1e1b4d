// Package memfs is an in-memory vfs.FS used by unit tests that need a
// fast, deterministic backend without touching the host filesystem. Its
// mutex-guarded node map is grounded on the teacher's in-memory metadata
// store (pkg/metadata/store/memory), adapted from that store's DB-flavored
// record shape to the plain vfs.FS contract.
package memfs

import (
	"bytes"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/leruetkins/bold-nfs/internal/vfs"
)

type node struct {
	name     string
	isDir    bool
	content  []byte
	children map[string]*node
	mode     uint32
	mtime    time.Time
	ctime    time.Time
	nlink    uint32
}

func newDirNode(name string) *node {
	now := time.Now()
	return &node{name: name, isDir: true, children: map[string]*node{}, mode: 0o755, mtime: now, ctime: now, nlink: 2}
}

func newFileNode(name string) *node {
	now := time.Now()
	return &node{name: name, mode: 0o644, mtime: now, ctime: now, nlink: 1}
}

// FS is an in-memory filesystem tree rooted at "/".
type FS struct {
	mu   sync.RWMutex
	root *node
}

// New returns an empty in-memory tree.
func New() *FS {
	return &FS{root: newDirNode("/")}
}

func (f *FS) Root() vfs.Path { return "/" }

func splitPath(p vfs.Path) []string {
	clean := path.Clean("/" + string(p))
	if clean == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(clean, "/"), "/")
}

// lookup walks to the node at p, returning its parent (nil for root) and
// the node itself.
func (f *FS) lookup(p vfs.Path) (parent *node, n *node, segs []string) {
	segs = splitPath(p)
	cur := f.root
	var prev *node
	for _, seg := range segs {
		if cur == nil || !cur.isDir {
			return nil, nil, segs
		}
		prev = cur
		cur = cur.children[seg]
	}
	return prev, cur, segs
}

func (f *FS) Exists(p vfs.Path) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, n, segs := f.lookup(p)
	return len(segs) == 0 || n != nil
}

func (f *FS) Metadata(p vfs.Path) (vfs.Metadata, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, n, segs := f.lookup(p)
	if len(segs) == 0 {
		n = f.root
	}
	if n == nil {
		return vfs.Metadata{}, vfs.NewError(vfs.ErrNotExist, "metadata", p, nil)
	}
	return nodeMetadata(n), nil
}

func nodeMetadata(n *node) vfs.Metadata {
	m := vfs.Metadata{
		HasMode:  true,
		Mode:     n.mode,
		ReadOnly: n.mode&0o200 == 0,
		MTime:    n.mtime,
		ATime:    n.mtime,
		CTime:    n.ctime,
		NLink:    n.nlink,
	}
	if n.isDir {
		m.Type = vfs.TypeDirectory
	} else {
		m.Type = vfs.TypeRegular
		m.Size = uint64(len(n.content))
	}
	return m
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
	return vfs.Path(path.Dir(string(p)))
}

func (f *FS) Filename(p vfs.Path) string {
	return path.Base(string(p))
}

func (f *FS) ReadDir(p vfs.Path) ([]vfs.DirEntry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, n, segs := f.lookup(p)
	if len(segs) == 0 {
		n = f.root
	}
	if n == nil {
		return nil, vfs.NewError(vfs.ErrNotExist, "read_dir", p, nil)
	}
	if !n.isDir {
		return nil, vfs.NewError(vfs.ErrNotDir, "read_dir", p, nil)
	}

	out := make([]vfs.DirEntry, 0, len(n.children))
	for name, child := range n.children {
		out = append(out, vfs.DirEntry{Name: name, Meta: nodeMetadata(child)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memHandle struct {
	buf *bytes.Reader
}

func (h *memHandle) Read(p []byte) (int, error)         { return h.buf.Read(p) }
func (h *memHandle) Seek(o int64, w int) (int64, error) { return h.buf.Seek(o, w) }
func (h *memHandle) Close() error                       { return nil }

func (f *FS) OpenFile(p vfs.Path) (vfs.ReadSeekCloser, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, n, _ := f.lookup(p)
	if n == nil {
		return nil, vfs.NewError(vfs.ErrNotExist, "open_file", p, nil)
	}
	if n.isDir {
		return nil, vfs.NewError(vfs.ErrIsDir, "open_file", p, nil)
	}
	return &memHandle{buf: bytes.NewReader(n.content)}, nil
}

// memWriter writes straight into the node's content under the FS lock, and
// Close does nothing further, which is sufficient fidelity for a
// test-oriented backend (no partial-write crash semantics to model).
type memWriter struct {
	fsys *FS
	n    *node
	pos  int64
}

func (w *memWriter) Write(p []byte) (int, error) {
	w.fsys.mu.Lock()
	defer w.fsys.mu.Unlock()
	end := w.pos + int64(len(p))
	if end > int64(len(w.n.content)) {
		grown := make([]byte, end)
		copy(grown, w.n.content)
		w.n.content = grown
	}
	copy(w.n.content[w.pos:end], p)
	w.pos = end
	w.n.mtime = time.Now()
	return len(p), nil
}

func (w *memWriter) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		w.pos = offset
	case io.SeekCurrent:
		w.pos += offset
	case io.SeekEnd:
		w.pos = int64(len(w.n.content)) + offset
	}
	return w.pos, nil
}

func (w *memWriter) Close() error { return nil }

func (f *FS) CreateFile(p vfs.Path) (vfs.WriteSeekCloser, error) {
	f.mu.Lock()
	parent, n, segs := f.lookup(p)
	if len(segs) == 0 {
		f.mu.Unlock()
		return nil, vfs.NewError(vfs.ErrIsDir, "create_file", p, nil)
	}
	if n == nil {
		if parent == nil {
			f.mu.Unlock()
			return nil, vfs.NewError(vfs.ErrNotDir, "create_file", f.Parent(p), nil)
		}
		n = newFileNode(segs[len(segs)-1])
		parent.children[n.name] = n
		parent.mtime = time.Now()
	}
	f.mu.Unlock()
	if n.isDir {
		return nil, vfs.NewError(vfs.ErrIsDir, "create_file", p, nil)
	}
	return &memWriter{fsys: f, n: n}, nil
}

func (f *FS) CreateDir(p vfs.Path) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	parent, n, segs := f.lookup(p)
	if len(segs) == 0 {
		return vfs.NewError(vfs.ErrExist, "create_dir", p, nil)
	}
	if n != nil {
		return vfs.NewError(vfs.ErrExist, "create_dir", p, nil)
	}
	if parent == nil {
		return vfs.NewError(vfs.ErrNotDir, "create_dir", f.Parent(p), nil)
	}
	parent.children[segs[len(segs)-1]] = newDirNode(segs[len(segs)-1])
	parent.mtime = time.Now()
	return nil
}

func (f *FS) Remove(p vfs.Path) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	parent, n, segs := f.lookup(p)
	if len(segs) == 0 || n == nil {
		return vfs.NewError(vfs.ErrNotExist, "remove", p, nil)
	}
	if n.isDir && len(n.children) > 0 {
		return vfs.NewError(vfs.ErrNotEmpty, "remove", p, nil)
	}
	delete(parent.children, segs[len(segs)-1])
	parent.mtime = time.Now()
	return nil
}

func (f *FS) Rename(src, dst vfs.Path) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	srcParent, srcNode, srcSegs := f.lookup(src)
	if len(srcSegs) == 0 || srcNode == nil {
		return vfs.NewError(vfs.ErrNotExist, "rename", src, nil)
	}
	dstParent, dstNode, dstSegs := f.lookup(dst)
	if len(dstSegs) == 0 {
		return vfs.NewError(vfs.ErrExist, "rename", dst, nil)
	}
	if dstParent == nil {
		return vfs.NewError(vfs.ErrNotDir, "rename", f.Parent(dst), nil)
	}
	if dstNode != nil {
		if dstNode.isDir && len(dstNode.children) > 0 {
			return vfs.NewError(vfs.ErrNotEmpty, "rename", dst, nil)
		}
	}

	newName := dstSegs[len(dstSegs)-1]
	srcNode.name = newName
	delete(srcParent.children, srcSegs[len(srcSegs)-1])
	dstParent.children[newName] = srcNode
	srcParent.mtime = time.Now()
	dstParent.mtime = time.Now()
	return nil
}

func (f *FS) SetLen(p vfs.Path, size uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, n, _ := f.lookup(p)
	if n == nil {
		return vfs.NewError(vfs.ErrNotExist, "set_len", p, nil)
	}
	if n.isDir {
		return vfs.NewError(vfs.ErrIsDir, "set_len", p, nil)
	}
	if uint64(len(n.content)) == size {
		return nil
	}
	grown := make([]byte, size)
	copy(grown, n.content)
	n.content = grown
	n.mtime = time.Now()
	return nil
}

func (f *FS) SetPermissions(p vfs.Path, mode uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, n, _ := f.lookup(p)
	if n == nil {
		return vfs.NewError(vfs.ErrNotExist, "set_permissions", p, nil)
	}
	n.mode = mode & 0o777
	n.ctime = time.Now()
	return nil
}

// SetTimes updates mtime only. memfs keeps no separate access time (its
// Metadata reports mtime as ATime), so atime is ignored.
func (f *FS) SetTimes(p vfs.Path, atime, mtime *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, n, _ := f.lookup(p)
	if n == nil {
		return vfs.NewError(vfs.ErrNotExist, "set_times", p, nil)
	}
	if mtime != nil {
		n.mtime = *mtime
	}
	_ = atime
	return nil
}
