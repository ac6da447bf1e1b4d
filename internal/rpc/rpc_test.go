package rpc

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAuthUnixCredentials() *UnixAuth {
	return &UnixAuth{
		Stamp:       uint32(time.Now().Unix()),
		MachineName: "testhost",
		UID:         1000,
		GID:         1000,
		GIDs:        []uint32{4, 24, 27, 30},
	}
}

func encodeAuthUnix(auth *UnixAuth) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, auth.Stamp)

	nameLen := uint32(len(auth.MachineName))
	_ = binary.Write(buf, binary.BigEndian, nameLen)
	buf.WriteString(auth.MachineName)
	for i := uint32(0); i < (4-(nameLen%4))%4; i++ {
		buf.WriteByte(0)
	}

	_ = binary.Write(buf, binary.BigEndian, auth.UID)
	_ = binary.Write(buf, binary.BigEndian, auth.GID)
	_ = binary.Write(buf, binary.BigEndian, uint32(len(auth.GIDs)))
	for _, gid := range auth.GIDs {
		_ = binary.Write(buf, binary.BigEndian, gid)
	}
	return buf.Bytes()
}

func TestParseUnixAuth(t *testing.T) {
	t.Run("ParsesValidCredentials", func(t *testing.T) {
		original := validAuthUnixCredentials()
		parsed, err := ParseUnixAuth(encodeAuthUnix(original))
		require.NoError(t, err)
		assert.Equal(t, original.Stamp, parsed.Stamp)
		assert.Equal(t, original.MachineName, parsed.MachineName)
		assert.Equal(t, original.UID, parsed.UID)
		assert.Equal(t, original.GID, parsed.GID)
		assert.Equal(t, original.GIDs, parsed.GIDs)
	})

	t.Run("ParsesRootCredentials", func(t *testing.T) {
		auth := &UnixAuth{Stamp: 1, MachineName: "testhost", GIDs: []uint32{}}
		parsed, err := ParseUnixAuth(encodeAuthUnix(auth))
		require.NoError(t, err)
		assert.Equal(t, uint32(0), parsed.UID)
		assert.Empty(t, parsed.GIDs)
	})

	t.Run("ParsesWithMaximumGroups", func(t *testing.T) {
		gids := make([]uint32, 16)
		for i := range gids {
			gids[i] = uint32(i + 1000)
		}
		auth := &UnixAuth{Stamp: 1, MachineName: "testhost", UID: 1000, GID: 1000, GIDs: gids}
		parsed, err := ParseUnixAuth(encodeAuthUnix(auth))
		require.NoError(t, err)
		assert.Equal(t, gids, parsed.GIDs)
	})

	t.Run("RejectsExcessiveGroups", func(t *testing.T) {
		buf := new(bytes.Buffer)
		_ = binary.Write(buf, binary.BigEndian, uint32(12345))
		_ = binary.Write(buf, binary.BigEndian, uint32(8))
		buf.WriteString("testhost")
		_ = binary.Write(buf, binary.BigEndian, uint32(1000))
		_ = binary.Write(buf, binary.BigEndian, uint32(1000))
		_ = binary.Write(buf, binary.BigEndian, uint32(17))

		_, err := ParseUnixAuth(buf.Bytes())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too many gids")
	})

	t.Run("RejectsLongMachineName", func(t *testing.T) {
		buf := new(bytes.Buffer)
		_ = binary.Write(buf, binary.BigEndian, uint32(12345))
		_ = binary.Write(buf, binary.BigEndian, uint32(256))

		_, err := ParseUnixAuth(buf.Bytes())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "machine name too long")
	})

	t.Run("RejectsEmptyBody", func(t *testing.T) {
		_, err := ParseUnixAuth([]byte{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
	})
}

func TestAuthFlavors(t *testing.T) {
	flavors := []uint32{AuthNull, AuthUnix, AuthShort, AuthDES}
	seen := make(map[uint32]bool)
	for _, f := range flavors {
		assert.False(t, seen[f])
		seen[f] = true
	}
}

func TestMakeProgMismatchReply(t *testing.T) {
	t.Run("GeneratesValidReply", func(t *testing.T) {
		reply, err := MakeProgMismatchReply(0x12345678, 0, 0)
		require.NoError(t, err)

		fragHeader := binary.BigEndian.Uint32(reply[0:4])
		assert.True(t, fragHeader&0x80000000 != 0)
		assert.Equal(t, uint32(len(reply)-4), fragHeader&0x7FFFFFFF)
		assert.Equal(t, uint32(0x12345678), binary.BigEndian.Uint32(reply[4:8]))
		assert.Equal(t, RPCReply, binary.BigEndian.Uint32(reply[8:12]))
		assert.Equal(t, RPCMsgAccepted, binary.BigEndian.Uint32(reply[12:16]))
	})

	t.Run("RejectsInvalidVersionRange", func(t *testing.T) {
		reply, err := MakeProgMismatchReply(1, 5, 3)
		require.Error(t, err)
		assert.Nil(t, reply)
		assert.Contains(t, err.Error(), "low (5) > high (3)")
	})

	t.Run("ContainsProgMismatchStatus", func(t *testing.T) {
		reply, err := MakeProgMismatchReply(0x1234, 0, 0)
		require.NoError(t, err)
		acceptStat := binary.BigEndian.Uint32(reply[24:28])
		assert.Equal(t, RPCProgMismatch, acceptStat)
	})
}

func TestReadRecordSingleFragment(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	framed := frame(payload)

	got, err := ReadRecord(bytes.NewReader(framed))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadRecordMultipleFragments(t *testing.T) {
	var wire bytes.Buffer
	first := []byte{1, 2, 3}
	second := []byte{4, 5}

	var hdr1 [4]byte
	binary.BigEndian.PutUint32(hdr1[:], uint32(len(first)))
	wire.Write(hdr1[:])
	wire.Write(first)

	var hdr2 [4]byte
	binary.BigEndian.PutUint32(hdr2[:], lastFragmentBit|uint32(len(second)))
	wire.Write(hdr2[:])
	wire.Write(second)

	got, err := ReadRecord(&wire)
	require.NoError(t, err)
	assert.Equal(t, append(first, second...), got)
}
