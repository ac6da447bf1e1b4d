package handlers

import (
	"bytes"
	"crypto/sha256"
	"sort"

	"github.com/leruetkins/bold-nfs/internal/nfs4/attrs"
	"github.com/leruetkins/bold-nfs/internal/nfs4/state"
	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
	"github.com/leruetkins/bold-nfs/internal/vfs"
	"github.com/leruetkins/bold-nfs/internal/xdr"
)

// reservedCookieLow/High mark the cookie values a client must never supply
// as a continuation token (spec.md §4.4 step 5).
const (
	reservedCookieLow  = 1
	reservedCookieHigh = 2
	firstRealCookie    = 3
)

// computeCookieVerf hashes the directory's mtime and its sorted child
// names into an 8-byte verifier. An empty directory yields an all-zero
// verifier (spec.md §4.4 step 3).
func computeCookieVerf(dirMTimeUnixNano int64, sortedNames []string) [8]byte {
	var verf [8]byte
	if len(sortedNames) == 0 {
		return verf
	}
	h := sha256.New()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(dirMTimeUnixNano >> (56 - 8*i))
	}
	h.Write(buf[:])
	for _, name := range sortedNames {
		h.Write([]byte(name))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	copy(verf[:], sum[:8])
	return verf
}

type readdirEntry struct {
	cookie uint64
	name   string
	meta   vfs.Metadata
	path   vfs.Path
}

// opReadDir implements spec.md §4.4 end to end: sorted enumeration, cookie
// verifier validation, dircount/maxcount budget enforcement, and
// per-entry fattr4_rdattr_error substitution on an unreadable child.
func opReadDir(ctx *types.CompoundContext, r *bytes.Reader) (uint32, []byte, error) {
	cookie, err := xdr.DecodeUint64(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	cookieVerfRaw, err := xdr.DecodeFixedOpaque(r, types.NFS4VerifierSize)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	dircount, err := xdr.DecodeUint32(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	maxcount, err := xdr.DecodeUint32(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}
	bitmap, err := attrs.DecodeBitmap4(r)
	if err != nil {
		return types.NFS4ErrBadXDR, nil, nil
	}

	if ctx.CurrentFilehandle == nil {
		return types.NFS4ErrNoFileHandle, nil, nil
	}
	if cookie == reservedCookieLow || cookie == reservedCookieHigh {
		return types.NFS4ErrBadCookie, nil, nil
	}

	mgr := managerOf(ctx)
	dirPath := vfs.Path(ctx.CurrentFilehandle.Path)

	dirFH, err := mgr.GetFilehandleForID(ctx.CurrentFilehandle.ID)
	if err != nil {
		return statusFromStateErr(err, types.NFS4ErrStale), nil, nil
	}
	dirMeta := dirFH.Snapshot()
	if dirMeta.Type != vfs.TypeDirectory {
		return types.NFS4ErrNotDir, nil, nil
	}

	children, err := mgr.FS().ReadDir(dirPath)
	if err != nil {
		return statusFromStateErr(err, types.NFS4ErrIO), nil, nil
	}

	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	byName := make(map[string]vfs.Metadata, len(children))
	for _, c := range children {
		byName[c.Name] = c.Meta
	}

	verf := computeCookieVerf(dirMeta.MTime.UnixNano(), names)

	if cookie != 0 {
		var clientVerf [8]byte
		copy(clientVerf[:], cookieVerfRaw)
		if clientVerf != verf {
			return types.NFS4ErrNotSame, nil, nil
		}
	}

	startIndex := 0
	if cookie != 0 {
		// cookie is the last entry the client already holds; resume after it.
		idx := int(cookie) - firstRealCookie
		if idx < 0 || idx > len(names) {
			return types.NFS4ErrBadCookie, nil, nil
		}
		startIndex = idx + 1
		if startIndex > len(names) {
			startIndex = len(names)
		}
	}

	entries := make([]readdirEntry, 0, len(names)-startIndex)
	for i := startIndex; i < len(names); i++ {
		name := names[i]
		entries = append(entries, readdirEntry{
			cookie: uint64(i + firstRealCookie),
			name:   name,
			meta:   byName[name],
			path:   mgr.FS().Join(dirPath, name),
		})
	}

	e := xdr.NewEncoder()
	e.WriteFixedOpaque(verf[:])

	bodyEncoder := xdr.NewEncoder()
	dirBudget, maxBudget := uint64(0), uint64(0)
	eof := true
	emitted := 0

	for idx, ent := range entries {
		answered, attrBody, rdErr := entryAttrs(mgr, ent, bitmap)

		entrySize := uint64(8 + 4 + len(ent.name) + padded(len(ent.name)) + 4 + len(attrBody) + padded(len(attrBody)))
		nameBudget := uint64(len(ent.name) + 8)

		if emitted > 0 && (dirBudget+nameBudget > uint64(dircount) || maxBudget+entrySize > uint64(maxcount)) {
			eof = false
			break
		}
		if emitted == 0 && maxBudget+entrySize > uint64(maxcount) {
			return types.NFS4ErrTooSmall, nil, nil
		}

		bodyEncoder.WriteBool(true) // another entry follows
		bodyEncoder.WriteUint64(ent.cookie)
		bodyEncoder.WriteString(ent.name)
		attrs.EncodeBitmap4(bodyEncoder, answered)
		bodyEncoder.WriteOpaque(attrBody)
		_ = rdErr

		dirBudget += nameBudget
		maxBudget += entrySize
		emitted++

		if idx == len(entries)-1 {
			eof = true
		}
	}

	bodyEncoder.WriteBool(false) // no more entries
	e.WriteRaw(bodyEncoder.Bytes())
	e.WriteBool(eof)
	recorder.ObserveReaddirEntries(emitted)
	return types.NFS4OK, e.Bytes(), nil
}

func padded(n int) int {
	if r := n % 4; r != 0 {
		return 4 - r
	}
	return 0
}

// entryAttrs computes one READDIR entry's attribute vector, substituting
// fattr4_rdattr_error when the backend cannot supply fresh metadata
// (spec.md §4.4 step 8).
func entryAttrs(mgr *state.Manager, ent readdirEntry, requested attrs.Bitmap4) (attrs.Bitmap4, []byte, error) {
	fh, err := mgr.GetFilehandleForPath(ent.path)
	if err != nil {
		answered, body := attrs.BuildRDAttrError(requested, types.NFS4ErrIO)
		return answered, body, err
	}
	answered, body, err := mgr.FilehandleAttrs(requested, fh)
	if err != nil {
		answered, body = attrs.BuildRDAttrError(requested, types.NFS4ErrIO)
		return answered, body, err
	}
	return answered, body, nil
}
