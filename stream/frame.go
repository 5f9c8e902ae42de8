// Package stream pairs two independently-arriving timestamped frame
// streams by timestamp proximity. The Synchronizer holds the latest
// frame per stream and yields a SyncedPair when both sides fall within
// the configured skew; the PendingSlot parks a pair that formed while
// the downstream consumer was busy, latest-wins.
package stream

import (
	"time"

	"github.com/NV7150/ImOTAR-sub000/internal/util"
)

// Stream names. The synchronizer tracks exactly these two.
const (
	StreamColor = "color"
	StreamDepth = "depth"
)

// Frame is a timestamped handle to one input payload.
//
// A Frame is immutable once captured: the synchronizer reads timestamps
// and forwards payloads by reference, it never mutates them. Producers
// must not modify a payload after handing the Frame over.
type Frame struct {
	// Stream names the source, StreamColor or StreamDepth.
	Stream string

	// Seq is a per-stream sequence number assigned by the producer.
	// Monotonically increasing. Used for drop detection.
	Seq uint64

	// Timestamp is the capture time (source clock, not processing time).
	// Non-decreasing per stream; no ordering is assumed across streams.
	Timestamp time.Time

	// Payload is the opaque frame content. The pairing core never
	// inspects it; executors type-assert it at Begin time.
	Payload any
}

// SyncedPair is two frames accepted together because their timestamps
// fall within the synchronizer's skew tolerance. Created only by
// Synchronizer.TrySync and consumed exactly once.
type SyncedPair struct {
	// Seq is the pair sequence number assigned by the Synchronizer.
	Seq uint64

	Color Frame
	Depth Frame

	ColorTimestamp time.Time
	DepthTimestamp time.Time

	// PairedAt is the newer of the two frame timestamps.
	PairedAt time.Time
}

// Skew returns the absolute timestamp distance between the two sides.
func (p SyncedPair) Skew() time.Duration {
	return util.AbsDuration(p.ColorTimestamp.Sub(p.DepthTimestamp))
}
