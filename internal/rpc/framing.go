package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxRecordSize bounds the total size of a defragmented RPC record to
// protect against a malicious or corrupt fragment header chain exhausting
// memory before any program-level length checks run.
const maxRecordSize = 4 * 1024 * 1024

// ReadRecord reads one complete RPC record (one or more TCP record-marking
// fragments) from r and returns its concatenated payload.
func ReadRecord(r io.Reader) ([]byte, error) {
	var payload []byte
	for {
		var hdr [4]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}
		raw := binary.BigEndian.Uint32(hdr[:])
		last := raw&lastFragmentBit != 0
		length := raw &^ lastFragmentBit

		if uint64(len(payload))+uint64(length) > maxRecordSize {
			return nil, fmt.Errorf("rpc: record exceeds maximum size %d bytes", maxRecordSize)
		}

		frag := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(r, frag); err != nil {
				return nil, fmt.Errorf("rpc: read fragment: %w", err)
			}
		}
		payload = append(payload, frag...)

		if last {
			return payload, nil
		}
	}
}
