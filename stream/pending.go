package stream

import "sync"

// PendingSlot is a single-slot latest-wins buffer for a SyncedPair that
// formed while the consumer was busy. Put always overwrites; a discarded
// predecessor is counted, never queued. Never holds more than one pair.
type PendingSlot struct {
	mu       sync.Mutex
	pair     SyncedPair
	full     bool
	discards uint64
}

// NewPendingSlot returns an empty slot.
func NewPendingSlot() *PendingSlot {
	return &PendingSlot{}
}

// Put stores the pair, overwriting any unconsumed predecessor.
func (ps *PendingSlot) Put(pair SyncedPair) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.full {
		ps.discards++
	}
	ps.pair = pair
	ps.full = true
}

// Take consumes and clears the held pair. Returns false when empty.
func (ps *PendingSlot) Take() (SyncedPair, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.full {
		return SyncedPair{}, false
	}
	pair := ps.pair
	ps.pair = SyncedPair{}
	ps.full = false
	return pair, true
}

// Full reports whether a pair is waiting.
func (ps *PendingSlot) Full() bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.full
}

// Discards returns how many pairs were overwritten before being taken.
func (ps *PendingSlot) Discards() uint64 {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.discards
}
