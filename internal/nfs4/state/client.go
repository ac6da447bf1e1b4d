package state

import "time"

// SetClientID implements the SETCLIENTID half of the v4.0 client record
// handshake (spec.md §3's minimal client record): registers (or returns
// the existing registration for) the verifier/owner pair, scoped only
// enough to hand OPEN a clientid to stamp onto its open-owner key.
func (m *Manager) SetClientID(verifier [8]byte, owner []byte) (clientID uint64, confirmVerifier [8]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, rec := range m.clients {
		if rec.Verifier == verifier && bytesEqual(rec.Owner, owner) {
			return id, rec.Verifier
		}
	}

	id := m.nextClientID
	m.nextClientID++
	m.clients[id] = &ClientRecord{
		ClientID: id,
		Verifier: verifier,
		Owner:    append([]byte(nil), owner...),
		LastSeen: time.Now(),
	}
	return id, verifier
}

// ConfirmClientID marks a previously issued clientid as confirmed, per
// SETCLIENTID_CONFIRM.
func (m *Manager) ConfirmClientID(clientID uint64, verifier [8]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.clients[clientID]
	if !ok {
		return newStateErrorClidInUse()
	}
	if rec.Verifier != verifier {
		return newStateErrorClidInUse()
	}
	rec.Confirmed = true
	rec.LastSeen = time.Now()
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
