// Package attrs synthesizes and encodes NFSv4 fattr4 attribute values from
// a vfs.Metadata snapshot, grounded on the teacher's attrs package (bitmap
// encode/decode and the supported-attribute set), trimmed of the identity
// mapper and ACL-related attributes that are out of scope here.
package attrs

import (
	"fmt"
	"io"

	"github.com/leruetkins/bold-nfs/internal/xdr"
)

// maxBitmapWords bounds a bitmap4 to 8 32-bit words (256 attribute bits),
// comfortably more than any attribute this server recognizes.
const maxBitmapWords = 8

// Bitmap4 is a set of attribute-number bits, encoded on the wire as a
// length-prefixed array of uint32 words (word i holds bits 32i..32i+31).
type Bitmap4 []uint32

// DecodeBitmap4 decodes a bitmap4 value.
func DecodeBitmap4(r io.Reader) (Bitmap4, error) {
	count, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("attrs: read bitmap word count: %w", err)
	}
	if count > maxBitmapWords {
		return nil, fmt.Errorf("attrs: bitmap word count %d exceeds maximum %d", count, maxBitmapWords)
	}
	words := make(Bitmap4, count)
	for i := range words {
		words[i], err = xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("attrs: read bitmap word %d: %w", i, err)
		}
	}
	return words, nil
}

// EncodeBitmap4 appends b's wire representation via e.
func EncodeBitmap4(e *xdr.Encoder, b Bitmap4) {
	// Trim trailing zero words so the encoded bitmap is minimal, matching
	// what real clients emit and expect back.
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	e.WriteUint32(uint32(n))
	for i := 0; i < n; i++ {
		e.WriteUint32(b[i])
	}
}

// IsSet reports whether bit number is set in b.
func (b Bitmap4) IsSet(bit uint32) bool {
	word := bit / 32
	if int(word) >= len(b) {
		return false
	}
	return b[word]&(1<<(bit%32)) != 0
}

// SetBit sets bit number in b, growing the slice as needed.
func (b Bitmap4) SetBit(bit uint32) Bitmap4 {
	word := int(bit / 32)
	for len(b) <= word {
		b = append(b, 0)
	}
	b[word] |= 1 << (bit % 32)
	return b
}
