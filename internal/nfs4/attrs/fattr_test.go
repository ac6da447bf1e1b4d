package attrs

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leruetkins/bold-nfs/internal/vfs"
	"github.com/leruetkins/bold-nfs/internal/xdr"
)

// readdirRequestBitmap mirrors the 14-attribute request the original
// reference implementation's READDIR test exercises.
func readdirRequestBitmap() Bitmap4 {
	var b Bitmap4
	for _, a := range []uint32{
		FattrType, FattrChange, FattrSize, FattrFSID, FattrRDAttrError,
		FattrFileHandle, FattrFileID, FattrMode, FattrNumLinks, FattrOwner,
		FattrOwnerGroup, FattrSpaceUsed, FattrTimeAccess, FattrTimeModify,
	} {
		b = b.SetBit(a)
	}
	return b
}

func TestBuildAnswersExactlyFourteenAttrs(t *testing.T) {
	meta := vfs.Metadata{
		Type: vfs.TypeRegular, Size: 13, HasMode: true, Mode: 0o644,
		HasOwner: true, UID: 1000, GID: 1000, NLink: 1,
		MTime: time.Now(), ATime: time.Now(), CTime: time.Now(),
	}
	answered, body := Build(readdirRequestBitmap(), Input{
		Meta: meta, FileID: 42, FileHandle: []byte("abcd"), Change: 99, LeaseTime: 90,
	})

	count := 0
	for _, word := range answered {
		for b := uint32(0); b < 32; b++ {
			if word&(1<<b) != 0 {
				count++
			}
		}
	}
	assert.Equal(t, 14, count)
	assert.NotEmpty(t, body)
}

func TestBuildOnlyAnswersRequestedAttrs(t *testing.T) {
	var requested Bitmap4
	requested = requested.SetBit(FattrType)

	answered, _ := Build(requested, Input{Meta: vfs.Metadata{Type: vfs.TypeDirectory}})
	assert.True(t, answered.IsSet(FattrType))
	assert.False(t, answered.IsSet(FattrSize))
}

func TestSynthesizeModeNonPOSIX(t *testing.T) {
	mode := synthesizeMode(vfs.Metadata{Type: vfs.TypeRegular, ReadOnly: true})
	assert.Equal(t, uint32(0o444), mode)

	mode = synthesizeMode(vfs.Metadata{Type: vfs.TypeDirectory, ReadOnly: false})
	assert.Equal(t, uint32(0o777), mode)
}

func TestBitmap4RoundTrip(t *testing.T) {
	var b Bitmap4
	b = b.SetBit(0)
	b = b.SetBit(33)

	e := xdr.NewEncoder()
	EncodeBitmap4(e, b)

	decoded, err := DecodeBitmap4(bytes.NewReader(e.Bytes()))
	require.NoError(t, err)
	assert.True(t, decoded.IsSet(0))
	assert.True(t, decoded.IsSet(33))
	assert.False(t, decoded.IsSet(5))
}
