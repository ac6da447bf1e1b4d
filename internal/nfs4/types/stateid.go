package types

import "encoding/binary"

// Stateid4 identifies a piece of open or lock state on the wire: a 4-byte
// sequence number plus a 12-byte server-opaque identifier.
type Stateid4 struct {
	Seqid uint32
	Other [NFS4OtherSize]byte
}

// AnonymousStateid is used by READ/WRITE calls that pass no real state
// (e.g. stateless clients relying on share reservations only).
var AnonymousStateid = Stateid4{}

// Bytes renders the Other field for use as a map key elsewhere; Stateid4
// itself is already comparable and can be used as a map key directly.
func (s Stateid4) Bytes() [NFS4OtherSize]byte { return s.Other }

// Encode appends the stateid's wire representation (seqid then other) to
// dst and returns the result.
func (s Stateid4) Encode(dst []byte) []byte {
	var seqidBuf [4]byte
	binary.BigEndian.PutUint32(seqidBuf[:], s.Seqid)
	dst = append(dst, seqidBuf[:]...)
	dst = append(dst, s.Other[:]...)
	return dst
}
