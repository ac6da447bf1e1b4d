package rpc

import (
	"bytes"
	"fmt"

	"github.com/leruetkins/bold-nfs/internal/xdr"
)

// ParseUnixAuth decodes the opaque body of an AUTH_UNIX OpaqueAuth credential.
func ParseUnixAuth(body []byte) (*UnixAuth, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("rpc: empty AUTH_UNIX body")
	}

	r := bytes.NewReader(body)

	stamp, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: read stamp: %w", err)
	}

	nameLen, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: read machine name length: %w", err)
	}
	if nameLen > maxMachineNameLen {
		return nil, fmt.Errorf("rpc: machine name too long (%d > %d)", nameLen, maxMachineNameLen)
	}
	nameBuf := make([]byte, nameLen)
	if _, err := readFull(r, nameBuf); err != nil {
		return nil, fmt.Errorf("rpc: read machine name: %w", err)
	}
	if err := skipPadding(r, nameLen); err != nil {
		return nil, fmt.Errorf("rpc: skip machine name padding: %w", err)
	}

	uid, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: read uid: %w", err)
	}
	gid, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: read gid: %w", err)
	}

	gidCount, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("rpc: read gid count: %w", err)
	}
	if gidCount > maxGIDs {
		return nil, fmt.Errorf("rpc: too many gids (%d > %d)", gidCount, maxGIDs)
	}
	gids := make([]uint32, gidCount)
	for i := range gids {
		gids[i], err = xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("rpc: read gid[%d]: %w", i, err)
		}
	}

	return &UnixAuth{
		Stamp:       stamp,
		MachineName: string(nameBuf),
		UID:         uid,
		GID:         gid,
		GIDs:        gids,
	}, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func skipPadding(r *bytes.Reader, length uint32) error {
	pad := (4 - (length % 4)) % 4
	if pad == 0 {
		return nil
	}
	buf := make([]byte, pad)
	_, err := readFull(r, buf)
	return err
}
