package xdr

import (
	"bytes"
	"encoding/binary"
)

// Encoder accumulates an XDR-encoded COMPOUND result body. It wraps a
// bytes.Buffer rather than exposing one directly so callers cannot forget
// padding on opaque writes.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the accumulated wire bytes.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return e.buf.Len()
}

// WriteUint32 appends a big-endian uint32.
func (e *Encoder) WriteUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

// WriteUint64 appends a big-endian uint64 (XDR "hyper").
func (e *Encoder) WriteUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

// WriteInt32 appends a big-endian two's-complement int32.
func (e *Encoder) WriteInt32(v int32) {
	e.WriteUint32(uint32(v))
}

// WriteBool appends an XDR boolean as 0 or 1.
func (e *Encoder) WriteBool(v bool) {
	if v {
		e.WriteUint32(1)
	} else {
		e.WriteUint32(0)
	}
}

// WriteOpaque appends a length-prefixed opaque field, padded to a 4-byte
// boundary.
func (e *Encoder) WriteOpaque(data []byte) {
	e.WriteUint32(uint32(len(data)))
	e.WriteFixedOpaque(data)
}

// WriteFixedOpaque appends raw bytes with no length prefix, padded to a
// 4-byte boundary. Used for verifiers and stateid "other" fields whose
// length is implied by the protocol rather than carried on the wire.
func (e *Encoder) WriteFixedOpaque(data []byte) {
	e.buf.Write(data)
	if pad := (4 - (len(data) % 4)) % 4; pad > 0 {
		var padBuf [3]byte
		e.buf.Write(padBuf[:pad])
	}
}

// WriteString appends a string as an XDR opaque<>.
func (e *Encoder) WriteString(s string) {
	e.WriteOpaque([]byte(s))
}

// WriteRaw appends already-encoded XDR bytes verbatim, for splicing a
// sub-message (such as a full COMPOUND4res) into an enclosing reply.
func (e *Encoder) WriteRaw(data []byte) {
	e.buf.Write(data)
}
