package history

import "time"

// Outcome values for the jobs ledger. A row is born running and ends in
// exactly one of the other three.
const (
	OutcomeRunning     = "running"
	OutcomeCompleted   = "completed"
	OutcomeInvalidated = "invalidated"
	OutcomeFaulted     = "faulted"
)

// Record is one ledger row: the whole lifecycle of a single job.
type Record struct {
	ID             string
	ColorTimestamp time.Time
	DepthTimestamp time.Time
	SkewMS         float64
	Steps          int
	StartedTick    uint64
	FinalizedTick  *uint64
	CompletedTick  *uint64
	Outcome        string
	Fault          string
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// Duration returns the wall time from start to promotion, or zero while
// the job is still in flight.
func (r Record) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
