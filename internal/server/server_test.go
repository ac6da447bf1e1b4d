package server

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leruetkins/bold-nfs/internal/nfs4/handlers"
	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
	"github.com/leruetkins/bold-nfs/internal/rpc"
	"github.com/leruetkins/bold-nfs/internal/xdr"
)

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "OK", statusLabel(types.NFS4OK))
	assert.Equal(t, "10004", statusLabel(10004))
}

func TestEncodeCompoundReply(t *testing.T) {
	reply := handlers.CompoundReply{
		Status: types.NFS4OK,
		Results: []types.CompoundResult{
			{Opcode: types.OpPutRootFH, Status: types.NFS4OK, Body: []byte{0xAA, 0xBB}},
		},
	}
	encoded := encodeCompoundReply("my-tag", reply)

	r := bytes.NewReader(encoded)
	status, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	assert.Equal(t, types.NFS4OK, status)

	tag, err := xdr.DecodeString(r)
	require.NoError(t, err)
	assert.Equal(t, "my-tag", tag)

	count, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), count)
}

func buildUnixAuthCred(uid, gid uint32, gids []uint32) rpc.OpaqueAuth {
	e := xdr.NewEncoder()
	e.WriteUint32(0) // stamp
	e.WriteString("testhost")
	e.WriteUint32(uid)
	e.WriteUint32(gid)
	e.WriteUint32(uint32(len(gids)))
	for _, g := range gids {
		e.WriteUint32(g)
	}
	return rpc.OpaqueAuth{Flavor: rpc.AuthUnix, Body: e.Bytes()}
}

func TestClientInfoFromAuth_UnixCredential(t *testing.T) {
	cred := buildUnixAuthCred(1000, 1000, []uint32{27, 100})
	info := clientInfoFromAuth(cred, "10.0.0.5:51234")

	assert.Equal(t, uint32(1000), info.UID)
	assert.Equal(t, uint32(1000), info.GID)
	assert.Equal(t, []uint32{27, 100}, info.GIDs)
	assert.Equal(t, "10.0.0.5:51234", info.ClientAddr)
}

func TestClientInfoFromAuth_NonUnixFlavorIsAnonymous(t *testing.T) {
	cred := rpc.OpaqueAuth{Flavor: rpc.AuthNull}
	info := clientInfoFromAuth(cred, "10.0.0.5:51234")

	assert.Zero(t, info.UID)
	assert.Zero(t, info.GID)
	assert.Equal(t, "10.0.0.5:51234", info.ClientAddr)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("0.0.0.0:2049")
	assert.Equal(t, "0.0.0.0:2049", cfg.Addr)
	assert.Greater(t, cfg.MaxRequestsPerConnection, 0)
	assert.Greater(t, cfg.Timeouts.Idle, cfg.Timeouts.Read/2)
}
