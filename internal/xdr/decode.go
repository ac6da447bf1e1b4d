// Package xdr implements the subset of RFC 4506 XDR encoding the NFSv4
// COMPOUND body needs. It mirrors the hand-rolled helpers used throughout
// the rest of the stack rather than a generic reflection-based codec,
// because NFSv4 argument/result shapes are bespoke per operation.
package xdr

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxOpaqueLength bounds a single opaque/string field to protect against
// a corrupt or hostile length prefix forcing a huge allocation.
const maxOpaqueLength = 1024 * 1024

// DecodeUint32 decodes a big-endian uint32.
func DecodeUint32(r io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("read uint32: %w", err)
	}
	return v, nil
}

// DecodeUint64 decodes a big-endian uint64 (XDR "hyper").
func DecodeUint64(r io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("read uint64: %w", err)
	}
	return v, nil
}

// DecodeInt32 decodes a big-endian two's-complement int32.
func DecodeInt32(r io.Reader) (int32, error) {
	var v int32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("read int32: %w", err)
	}
	return v, nil
}

// DecodeBool decodes an XDR boolean (any nonzero uint32 is true).
func DecodeBool(r io.Reader) (bool, error) {
	v, err := DecodeUint32(r)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// DecodeOpaque decodes variable-length opaque data: length, data, 0-3 bytes
// of zero padding to realign to a 4-byte boundary.
func DecodeOpaque(r io.Reader) ([]byte, error) {
	length, err := DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read opaque length: %w", err)
	}
	if length > maxOpaqueLength {
		return nil, fmt.Errorf("opaque length %d exceeds maximum %d", length, maxOpaqueLength)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read opaque data: %w", err)
	}
	if pad := (4 - (length % 4)) % 4; pad > 0 {
		var padBuf [3]byte
		if _, err := io.ReadFull(r, padBuf[:pad]); err != nil {
			return nil, fmt.Errorf("skip opaque padding: %w", err)
		}
	}
	return data, nil
}

// DecodeFixedOpaque reads exactly n bytes of opaque data with no length
// prefix, used for fixed-size fields such as verifiers and stateid "other".
func DecodeFixedOpaque(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read fixed opaque[%d]: %w", n, err)
	}
	return buf, nil
}

// DecodeString decodes an XDR opaque<> as a UTF-8 string.
func DecodeString(r io.Reader) (string, error) {
	data, err := DecodeOpaque(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
