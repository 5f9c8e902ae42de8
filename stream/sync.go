package stream

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/NV7150/ImOTAR-sub000/errors"
	"github.com/NV7150/ImOTAR-sub000/internal/util"
	"github.com/NV7150/ImOTAR-sub000/logger"
)

// SynchronizerConfig bounds the pairing decision.
type SynchronizerConfig struct {
	// MaxSkew is the largest |tsColor - tsDepth| that still pairs.
	// The boundary is inclusive: skew == MaxSkew pairs, any excess fails.
	MaxSkew time.Duration

	// ColorStaleAfter drops a held color frame when a pairing attempt
	// fails on skew and the frame is older than the depth side by more
	// than this bound. Zero disables the policy. Skew failure alone
	// never drops a frame.
	ColorStaleAfter time.Duration

	// DepthStaleAfter is the mirror policy for the depth side.
	DepthStaleAfter time.Duration
}

// SyncStats is a snapshot of synchronizer counters.
type SyncStats struct {
	PairsYielded      uint64 `json:"pairs_yielded"`
	ColorObserved     uint64 `json:"color_observed"`
	DepthObserved     uint64 `json:"depth_observed"`
	ColorOverwritten  uint64 `json:"color_overwritten"`
	DepthOverwritten  uint64 `json:"depth_overwritten"`
	ColorDroppedStale uint64 `json:"color_dropped_stale"`
	DepthDroppedStale uint64 `json:"depth_dropped_stale"`
}

// Synchronizer holds the most recent frame from each of the two streams
// and yields a SyncedPair when both are present within MaxSkew.
//
// All methods are safe for concurrent use, though the intended model is
// single-threaded cooperative: producers observe, the tick loop pulls.
type Synchronizer struct {
	cfg SynchronizerConfig
	log *zap.SugaredLogger

	mu         sync.Mutex
	color      Frame
	colorValid bool
	depth      Frame
	depthValid bool
	pairSeq    uint64
	stats      SyncStats
}

// NewSynchronizer creates a synchronizer. MaxSkew must be positive;
// staleness bounds must be non-negative.
func NewSynchronizer(cfg SynchronizerConfig, log *zap.SugaredLogger) (*Synchronizer, error) {
	if cfg.MaxSkew <= 0 {
		return nil, errors.NewInvalidConfigError("synchronizer max skew must be > 0, got %s", cfg.MaxSkew)
	}
	if cfg.ColorStaleAfter < 0 || cfg.DepthStaleAfter < 0 {
		return nil, errors.NewInvalidConfigError("synchronizer staleness bounds must be >= 0")
	}
	if log == nil {
		log = logger.ComponentLogger("stream.sync")
	}
	return &Synchronizer{cfg: cfg, log: log}, nil
}

// ObserveColor records the latest color frame, overwriting any
// unconsumed predecessor (counted as an overwrite, not an error).
func (s *Synchronizer) ObserveColor(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.colorValid {
		s.stats.ColorOverwritten++
	}
	s.color = f
	s.colorValid = true
	s.stats.ColorObserved++
}

// ObserveDepth records the latest depth frame, overwriting any
// unconsumed predecessor.
func (s *Synchronizer) ObserveDepth(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.depthValid {
		s.stats.DepthOverwritten++
	}
	s.depth = f
	s.depthValid = true
	s.stats.DepthObserved++
}

// TrySync yields a pair iff both streams hold a valid frame and the
// timestamp skew is within MaxSkew (inclusive). On success both held
// frames are consumed so the same pair is never yielded twice. On
// failure both frames are left as-is, except that a configured
// staleness policy may drop the older side after a skew failure.
func (s *Synchronizer) TrySync() (SyncedPair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.colorValid || !s.depthValid {
		return SyncedPair{}, false
	}

	skew := util.AbsDuration(s.color.Timestamp.Sub(s.depth.Timestamp))
	if skew > s.cfg.MaxSkew {
		s.dropStaleLocked()
		return SyncedPair{}, false
	}

	pairedAt := s.color.Timestamp
	if s.depth.Timestamp.After(pairedAt) {
		pairedAt = s.depth.Timestamp
	}

	s.pairSeq++
	pair := SyncedPair{
		Seq:            s.pairSeq,
		Color:          s.color,
		Depth:          s.depth,
		ColorTimestamp: s.color.Timestamp,
		DepthTimestamp: s.depth.Timestamp,
		PairedAt:       pairedAt,
	}

	// Consume both sides: a pair is yielded exactly once.
	s.colorValid = false
	s.depthValid = false
	s.stats.PairsYielded++

	return pair, true
}

// dropStaleLocked applies the per-stream staleness policy after a skew
// failure. Only the side older than the other by more than its bound is
// dropped. Caller holds s.mu.
func (s *Synchronizer) dropStaleLocked() {
	if s.cfg.ColorStaleAfter > 0 && s.depth.Timestamp.Sub(s.color.Timestamp) > s.cfg.ColorStaleAfter {
		s.colorValid = false
		s.stats.ColorDroppedStale++
		s.log.Debugw("Dropped stale color frame",
			logger.FieldStream, StreamColor,
			logger.FieldSeq, s.color.Seq,
			logger.FieldSkewMS, s.depth.Timestamp.Sub(s.color.Timestamp).Milliseconds())
	}
	if s.cfg.DepthStaleAfter > 0 && s.color.Timestamp.Sub(s.depth.Timestamp) > s.cfg.DepthStaleAfter {
		s.depthValid = false
		s.stats.DepthDroppedStale++
		s.log.Debugw("Dropped stale depth frame",
			logger.FieldStream, StreamDepth,
			logger.FieldSeq, s.depth.Seq,
			logger.FieldSkewMS, s.color.Timestamp.Sub(s.depth.Timestamp).Milliseconds())
	}
}

// Stats returns a snapshot of the synchronizer counters.
func (s *Synchronizer) Stats() SyncStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
