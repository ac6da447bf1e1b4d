package attrs

import "github.com/leruetkins/bold-nfs/internal/vfs"

// ChangeFromMetadata derives the fattr4_change value from a metadata
// snapshot: nanosecond mtime packed into a uint64, which is monotonically
// non-decreasing for any real clock progression and changes on every
// write/truncate/rename target update (spec.md §3's "change" attribute).
func ChangeFromMetadata(meta vfs.Metadata) uint64 {
	return uint64(meta.MTime.UnixNano())
}
