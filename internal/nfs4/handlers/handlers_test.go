package handlers

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leruetkins/bold-nfs/internal/nfs4/attrs"
	"github.com/leruetkins/bold-nfs/internal/nfs4/state"
	"github.com/leruetkins/bold-nfs/internal/nfs4/types"
	"github.com/leruetkins/bold-nfs/internal/vfs"
	"github.com/leruetkins/bold-nfs/internal/vfs/memfs"
	"github.com/leruetkins/bold-nfs/internal/xdr"
)

func newTestManager(t *testing.T) *state.Manager {
	t.Helper()
	mgr, err := state.NewManager(memfs.New(), time.Minute)
	require.NoError(t, err)
	return mgr
}

// buildCompound encodes a COMPOUND4args body (tag, minorversion, argarray)
// from a sequence of already-encoded (opcode, args) pairs.
func buildCompound(ops ...func(*xdr.Encoder)) []byte {
	e := xdr.NewEncoder()
	e.WriteString("test")
	e.WriteUint32(0) // minorversion
	e.WriteUint32(uint32(len(ops)))
	for _, op := range ops {
		op(e)
	}
	return e.Bytes()
}

func putRootFH(e *xdr.Encoder) {
	e.WriteUint32(types.OpPutRootFH)
}

func lookup(name string) func(*xdr.Encoder) {
	return func(e *xdr.Encoder) {
		e.WriteUint32(types.OpLookup)
		e.WriteString(name)
	}
}

func getFH(e *xdr.Encoder) {
	e.WriteUint32(types.OpGetFH)
}

func runCompound(t *testing.T, mgr *state.Manager, body []byte) CompoundReply {
	t.Helper()
	req, err := DecodeCompoundRequest(body)
	require.NoError(t, err)
	return RunCompound(context.Background(), mgr, types.ClientInfo{}, 0, req)
}

func TestRunCompound_StopsAtFirstError(t *testing.T) {
	mgr := newTestManager(t)

	body := buildCompound(putRootFH, lookup("missing"), getFH)
	reply := runCompound(t, mgr, body)

	require.Len(t, reply.Results, 2)
	assert.Equal(t, types.NFS4OK, reply.Results[0].Status)
	assert.Equal(t, types.NFS4ErrNoEnt, reply.Results[1].Status)
	assert.Equal(t, types.NFS4ErrNoEnt, reply.Status)
}

func TestRunCompound_UnknownOpcode(t *testing.T) {
	mgr := newTestManager(t)

	body := buildCompound(putRootFH, func(e *xdr.Encoder) {
		e.WriteUint32(9999)
	})
	reply := runCompound(t, mgr, body)

	require.Len(t, reply.Results, 2)
	assert.Equal(t, types.NFS4ErrOpIllegal, reply.Results[1].Status)
}

func TestRunCompound_MaxOpsExceeded(t *testing.T) {
	mgr := newTestManager(t)

	e := xdr.NewEncoder()
	e.WriteString("test")
	e.WriteUint32(0)
	e.WriteUint32(MaxCompoundOps + 1)
	for i := 0; i < MaxCompoundOps+1; i++ {
		e.WriteUint32(types.OpPutRootFH)
	}

	req, err := DecodeCompoundRequest(e.Bytes())
	require.NoError(t, err)
	reply := RunCompound(context.Background(), mgr, types.ClientInfo{}, 0, req)

	assert.Equal(t, types.NFS4ErrResource, reply.Status)
	assert.Empty(t, reply.Results)
}

func TestRunCompound_MinorVersionMismatch(t *testing.T) {
	mgr := newTestManager(t)
	body := buildCompound(putRootFH)
	req, err := DecodeCompoundRequest(body)
	require.NoError(t, err)

	reply := RunCompound(context.Background(), mgr, types.ClientInfo{}, 1, req)
	assert.Equal(t, types.NFS4ErrMinorVersMismatch, reply.Status)
}

// openCreateUnchecked encodes an OPEN with CLAIM_NULL and an UNCHECKED4
// create mode (no attrs set), matching the minimal create path.
func openCreateUnchecked(clientID uint64, owner, name string) func(*xdr.Encoder) {
	return func(e *xdr.Encoder) {
		e.WriteUint32(types.OpOpen)
		e.WriteUint32(1) // seqid
		e.WriteUint32(types.ShareAccessBoth)
		e.WriteUint32(types.ShareDenyNone)
		e.WriteFixedOpaque(beBytes(clientID))
		e.WriteString(owner)
		e.WriteUint32(types.Open4Create)
		e.WriteUint32(types.Unchecked4)
		e.WriteUint32(0) // empty attribute bitmap
		e.WriteUint32(0) // empty attribute values
		e.WriteUint32(types.ClaimNull)
		e.WriteString(name)
	}
}

func beBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func openConfirm(stateid types.Stateid4) func(*xdr.Encoder) {
	return func(e *xdr.Encoder) {
		e.WriteUint32(types.OpOpenConfirm)
		encodeStateid(e, stateid)
		e.WriteUint32(stateid.Seqid)
	}
}

// decodeOpenStateid pulls the stateid back out of an OPEN result body so
// the test can feed it into OPEN_CONFIRM, mirroring what a real client does.
func decodeOpenStateid(t *testing.T, body []byte) types.Stateid4 {
	t.Helper()
	r := bytes.NewReader(body)
	seqid, err := xdr.DecodeUint32(r)
	require.NoError(t, err)
	other, err := xdr.DecodeFixedOpaque(r, types.NFS4OtherSize)
	require.NoError(t, err)
	var s types.Stateid4
	s.Seqid = seqid
	copy(s.Other[:], other)
	return s
}

// TestOpenConfirmViaCompound reproduces the full create-then-confirm
// handshake at the COMPOUND level: PUTROOTFH, OPEN (create), OPEN_CONFIRM.
func TestOpenConfirmViaCompound(t *testing.T) {
	mgr := newTestManager(t)

	body := buildCompound(putRootFH, openCreateUnchecked(42, "owner-1", "hello.txt"))
	reply := runCompound(t, mgr, body)
	require.Equal(t, types.NFS4OK, reply.Status)
	require.Len(t, reply.Results, 2)

	openResult := decodeResultBody(t, reply.Results[1].Body)
	stateid := decodeOpenStateid(t, openResult)
	assert.Equal(t, uint32(1), stateid.Seqid)

	confirmBody := buildCompound(func(e *xdr.Encoder) {
		e.WriteUint32(types.OpPutRootFH)
	}, lookup("hello.txt"), openConfirm(stateid))
	confirmReply := runCompound(t, mgr, confirmBody)
	require.Equal(t, types.NFS4OK, confirmReply.Status)
}

// decodeResultBody strips the opcode+status discriminant encodeOpResult
// prepends, returning the operation-specific body a handler produced.
func decodeResultBody(t *testing.T, encoded []byte) []byte {
	t.Helper()
	r := bytes.NewReader(encoded)
	_, err := xdr.DecodeUint32(r) // opcode
	require.NoError(t, err)
	_, err = xdr.DecodeUint32(r) // status
	require.NoError(t, err)
	rest := make([]byte, r.Len())
	_, err = r.Read(rest)
	require.NoError(t, err)
	return rest
}

func TestReadDir_EmptyDirectoryEOF(t *testing.T) {
	mgr := newTestManager(t)

	body := buildCompound(putRootFH, func(e *xdr.Encoder) {
		e.WriteUint32(types.OpReadDir)
		e.WriteUint64(0)
		e.WriteFixedOpaque(make([]byte, types.NFS4VerifierSize))
		e.WriteUint32(8192)
		e.WriteUint32(8192)
		e.WriteUint32(0) // empty attribute bitmap
	})
	reply := runCompound(t, mgr, body)
	require.Equal(t, types.NFS4OK, reply.Status)

	rdBody := decodeResultBody(t, reply.Results[1].Body)
	r := bytes.NewReader(rdBody)
	_, err := xdr.DecodeFixedOpaque(r, types.NFS4VerifierSize)
	require.NoError(t, err)
	more, err := xdr.DecodeBool(r)
	require.NoError(t, err)
	assert.False(t, more)
	eof, err := xdr.DecodeBool(r)
	require.NoError(t, err)
	assert.True(t, eof)
}

// TestReadDir_CookieContinuation reproduces the cookie/cookieverf
// continuation handshake: a first READDIR with a small maxcount returns
// less than the full listing, and a follow-up call with the returned
// cookie and verifier resumes from where it left off.
func TestReadDir_CookieContinuation(t *testing.T) {
	mgr := newTestManager(t)
	root := mgr.GetRootFilehandle()

	for _, name := range []string{"a", "b", "c"} {
		_, _, _, err := mgr.CreateFile(root.Path, name, 1, []byte("owner"), types.ShareAccessBoth, types.ShareDenyNone, nil)
		require.NoError(t, err)
	}

	readdirArgs := func(cookie uint64, verf [8]byte, maxcount uint32) func(*xdr.Encoder) {
		return func(e *xdr.Encoder) {
			e.WriteUint32(types.OpReadDir)
			e.WriteUint64(cookie)
			e.WriteFixedOpaque(verf[:])
			e.WriteUint32(8192)
			e.WriteUint32(maxcount)
			e.WriteUint32(0)
		}
	}

	body := buildCompound(putRootFH, readdirArgs(0, [8]byte{}, 40))
	reply := runCompound(t, mgr, body)
	require.Equal(t, types.NFS4OK, reply.Status)

	rdBody := decodeResultBody(t, reply.Results[1].Body)
	r := bytes.NewReader(rdBody)
	verfRaw, err := xdr.DecodeFixedOpaque(r, types.NFS4VerifierSize)
	require.NoError(t, err)
	var verf [8]byte
	copy(verf[:], verfRaw)

	var lastCookie uint64
	seen := 0
	for {
		more, err := xdr.DecodeBool(r)
		require.NoError(t, err)
		if !more {
			break
		}
		lastCookie, err = xdr.DecodeUint64(r)
		require.NoError(t, err)
		_, err = xdr.DecodeString(r)
		require.NoError(t, err)
		_, err = attrs.DecodeBitmap4(r)
		require.NoError(t, err)
		_, err = xdr.DecodeOpaque(r)
		require.NoError(t, err)
		seen++
	}
	_, err = xdr.DecodeBool(r) // eof
	require.NoError(t, err)
	require.Greater(t, seen, 0)

	body2 := buildCompound(putRootFH, readdirArgs(lastCookie, verf, 8192))
	reply2 := runCompound(t, mgr, body2)
	require.Equal(t, types.NFS4OK, reply2.Status)
}

func TestReadDir_BadCookieVerf(t *testing.T) {
	mgr := newTestManager(t)
	root := mgr.GetRootFilehandle()
	_, _, _, err := mgr.CreateFile(root.Path, "a", 1, []byte("owner"), types.ShareAccessBoth, types.ShareDenyNone, nil)
	require.NoError(t, err)

	var wrongVerf [8]byte
	wrongVerf[0] = 0xFF
	body := buildCompound(putRootFH, func(e *xdr.Encoder) {
		e.WriteUint32(types.OpReadDir)
		e.WriteUint64(3) // first real cookie
		e.WriteFixedOpaque(wrongVerf[:])
		e.WriteUint32(8192)
		e.WriteUint32(8192)
		e.WriteUint32(0)
	})
	reply := runCompound(t, mgr, body)
	assert.Equal(t, types.NFS4ErrNotSame, reply.Status)
}

func TestReadDir_ReservedCookieRejected(t *testing.T) {
	mgr := newTestManager(t)
	body := buildCompound(putRootFH, func(e *xdr.Encoder) {
		e.WriteUint32(types.OpReadDir)
		e.WriteUint64(1) // reserved
		e.WriteFixedOpaque(make([]byte, types.NFS4VerifierSize))
		e.WriteUint32(8192)
		e.WriteUint32(8192)
		e.WriteUint32(0)
	})
	reply := runCompound(t, mgr, body)
	assert.Equal(t, types.NFS4ErrBadCookie, reply.Status)
}

func TestRead_PastEOFReturnsEmptyWithEOF(t *testing.T) {
	mgr := newTestManager(t)
	root := mgr.GetRootFilehandle()
	fh, _, stateid, err := mgr.CreateFile(root.Path, "f", 1, []byte("owner"), types.ShareAccessBoth, types.ShareDenyNone, nil)
	require.NoError(t, err)
	_, err = mgr.ConfirmOpen(stateid.Other, stateid.Seqid)
	require.NoError(t, err)

	w, err := mgr.FS().CreateFile(vfs.Path(fh.Path))
	require.NoError(t, err)
	_, err = w.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	body := buildCompound(putRootFH, lookup("f"), func(e *xdr.Encoder) {
		e.WriteUint32(types.OpRead)
		encodeStateid(e, stateid)
		e.WriteUint64(1000) // well past EOF
		e.WriteUint32(64)
	})
	reply := runCompound(t, mgr, body)
	require.Equal(t, types.NFS4OK, reply.Status)

	readBody := decodeResultBody(t, reply.Results[2].Body)
	r := bytes.NewReader(readBody)
	eof, err := xdr.DecodeBool(r)
	require.NoError(t, err)
	assert.True(t, eof)
	data, err := xdr.DecodeOpaque(r)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestRead_ShortReadReportsAvailableBytes(t *testing.T) {
	mgr := newTestManager(t)
	root := mgr.GetRootFilehandle()
	fh, _, stateid, err := mgr.CreateFile(root.Path, "f", 1, []byte("owner"), types.ShareAccessBoth, types.ShareDenyNone, nil)
	require.NoError(t, err)
	_, err = mgr.ConfirmOpen(stateid.Other, stateid.Seqid)
	require.NoError(t, err)

	w, err := mgr.FS().CreateFile(vfs.Path(fh.Path))
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	body := buildCompound(putRootFH, lookup("f"), func(e *xdr.Encoder) {
		e.WriteUint32(types.OpRead)
		encodeStateid(e, stateid)
		e.WriteUint64(0)
		e.WriteUint32(1024) // far more than the file contains
	})
	reply := runCompound(t, mgr, body)
	require.Equal(t, types.NFS4OK, reply.Status)

	readBody := decodeResultBody(t, reply.Results[2].Body)
	r := bytes.NewReader(readBody)
	eof, err := xdr.DecodeBool(r)
	require.NoError(t, err)
	assert.True(t, eof)
	data, err := xdr.DecodeOpaque(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestReadOnly_RejectsOpenCreate(t *testing.T) {
	mgr := newTestManager(t)
	SetReadOnly(true)
	defer SetReadOnly(false)

	body := buildCompound(putRootFH, openCreateUnchecked(1, "owner", "blocked.txt"))
	reply := runCompound(t, mgr, body)
	assert.Equal(t, types.NFS4ErrROFS, reply.Status)
}
