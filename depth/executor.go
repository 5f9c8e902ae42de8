// Package depth is the incremental job scheduler at the center of the
// pipeline: it owns at most one in-flight inference job, advances it a
// bounded number of steps per control-loop tick, tracks each job by a
// generation JobID so stale results never overwrite fresh ones, and
// promotes finished jobs to completed after a configurable tick delay.
package depth

import "github.com/NV7150/ImOTAR-sub000/stream"

// StepExecutor creates incremental runs over input snapshots. One
// executor is bound to one model-execution resource; the scheduler
// drives at most one Run at a time.
type StepExecutor interface {
	// Begin snapshots the pair and performs one-time preprocessing
	// (resize, tensor packing) synchronously. The returned Run is fully
	// prepared before its first Advance. An error means the snapshot
	// was unusable; no Run exists and nothing needs cleanup.
	Begin(pair stream.SyncedPair) (Run, error)
}

// Run is one in-flight incremental computation. Runs are not safe for
// concurrent use; the scheduler calls them from the tick thread only.
type Run interface {
	// Advance performs one bounded unit of work and reports whether
	// more remain. Once it returns false the run is complete and
	// further calls are harmless no-ops returning false. An error is
	// an executor fault: the run is dead and its result must not be
	// used.
	Advance() (more bool, err error)

	// Result returns the final dense plane, row-major, valid only
	// after Advance returned false with no error.
	Result() []float32
}
