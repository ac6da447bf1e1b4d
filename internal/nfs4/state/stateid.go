package state

import (
	"encoding/binary"
	"sync/atomic"
	"time"
)

// Stateid type tags occupy byte 0 of the "other" field, grounded on the
// teacher's state.generateStateidOther.
const (
	stateTypeOpen byte = 0x01
	stateTypeLock byte = 0x02
)

// generateStateidOther builds a 96-bit stateid "other" value: a type tag,
// a 24-bit fragment of this process's boot epoch (so a stateid minted by a
// previous server run is rejected without a map lookup), and a 64-bit
// monotonic counter.
func (m *Manager) generateStateidOther(stateType byte) [12]byte {
	var other [12]byte
	other[0] = stateType
	other[1] = byte(m.bootEpoch >> 16)
	other[2] = byte(m.bootEpoch >> 8)
	other[3] = byte(m.bootEpoch)
	counter := atomic.AddUint64(&m.stateSeq, 1)
	binary.BigEndian.PutUint64(other[4:], counter)
	return other
}

// isCurrentEpoch reports whether other's embedded boot-epoch fragment
// matches this server instance, used to fast-reject stateids from a
// previous run as NFS4ERR_STALE_STATEID instead of NFS4ERR_BAD_STATEID.
func (m *Manager) isCurrentEpoch(other [12]byte) bool {
	want := [3]byte{byte(m.bootEpoch >> 16), byte(m.bootEpoch >> 8), byte(m.bootEpoch)}
	return other[1] == want[0] && other[2] == want[1] && other[3] == want[2]
}

func bootEpochNow() uint32 {
	return uint32(time.Now().Unix()) & 0x00FFFFFF
}
