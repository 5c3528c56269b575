package voice

import (
	"sync"

	"github.com/google/uuid"
)

// pendingSlot is the tagged union of mid-flow dialogue states. At most one
// variant is live per session; holding a single interface-valued field makes
// that invariant structural rather than a convention across optional fields.
type pendingSlot interface {
	pending()
}

// awaitingQuantity: the user named an item, the quantity is still missing.
type awaitingQuantity struct {
	item string
}

// awaitingPrice: item and quantity are known, the price is still missing.
type awaitingPrice struct {
	item string
	qty  int
}

// awaitingExpiry: everything but the expiry date is known; only entered for
// expiry-tracked categories.
type awaitingExpiry struct {
	item  string
	qty   int
	price float64
}

func (awaitingQuantity) pending() {}
func (awaitingPrice) pending()    {}
func (awaitingExpiry) pending()   {}

// Session is the per-connection state of one voice interaction: the pending
// dialogue slot and the playback scheduler. Tool calls within a session are
// serialized through its mutex; the slot mutation and the store write are
// still separate steps, so a call racing the commit can observe a stale
// inventory count for the quota check.
type Session struct {
	ID     string
	UserID string

	mu      sync.Mutex
	slot    pendingSlot
	Playout *Playback
}

// NewSession creates a session for a user with an idle slot.
func NewSession(userID string, outputSampleRate int) *Session {
	return &Session{
		ID:      uuid.NewString(),
		UserID:  userID,
		Playout: NewPlayback(outputSampleRate),
	}
}

func (s *Session) setSlot(slot pendingSlot) {
	s.slot = slot
}

func (s *Session) clearSlot() {
	s.slot = nil
}

// Reset drops any pending slot and flushes playback. Called on session
// teardown so no half-finished flow survives a disconnect.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slot = nil
	s.Playout.Flush()
}
