package depth

import (
	"github.com/google/uuid"

	"github.com/NV7150/ImOTAR-sub000/errors"
	"github.com/NV7150/ImOTAR-sub000/stream"
)

// Tick is the scheduler's monotonic tick counter. The host advances it
// once per control-loop iteration; nothing ticks ambiently.
type Tick uint64

// JobID is an opaque generation token for one unit of incremental work.
// IDs are never reused; JobIDNone is the distinguished "no job" sentinel
// and is never a valid job.
type JobID string

// JobIDNone is returned wherever no job exists or could be started.
const JobIDNone JobID = ""

// NewJobID allocates a fresh generation token.
func NewJobID() JobID {
	return JobID(uuid.New().String())
}

// IsNone reports whether the id is the no-job sentinel.
func (id JobID) IsNone() bool { return id == JobIDNone }

// Short returns a log-friendly prefix of the id.
func (id JobID) Short() string {
	s := string(id)
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}

// State is the job lifecycle state. Transitions are monotonic and
// one-directional: Idle → Running → Finalized → Completed. The only
// reset is a brand-new Job with a brand-new JobID.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateFinalized State = "finalized"
	StateCompleted State = "completed"
)

// IsValidState returns true if the string is a valid State
func IsValidState(s string) bool {
	switch State(s) {
	case StateIdle, StateRunning, StateFinalized, StateCompleted:
		return true
	default:
		return false
	}
}

// Job is the step state machine for one unit of work: it owns the input
// snapshot, the step cursor and the executor run. The orthogonal
// invalidated flag never changes the state; it only suppresses the
// result application performed at the Running→Finalized boundary.
type Job struct {
	id              JobID
	state           State
	stepCursor      int
	snapshot        stream.SyncedPair
	run             Run
	output          *OutputBuffer
	finalizedAtTick Tick
	invalidated     bool
	fault           error
}

// newJob binds a freshly begun executor run to a new generation. The
// executor's Begin already succeeded, so the job starts Running.
func newJob(id JobID, snapshot stream.SyncedPair, run Run, output *OutputBuffer) *Job {
	return &Job{
		id:       id,
		state:    StateRunning,
		snapshot: snapshot,
		run:      run,
		output:   output,
	}
}

// ID returns the job's generation token.
func (j *Job) ID() JobID { return j.id }

// State returns the current lifecycle state.
func (j *Job) State() State { return j.state }

// StepCursor returns how many executor advances this job has issued.
func (j *Job) StepCursor() int { return j.stepCursor }

// Snapshot returns the input pair the job was started with.
func (j *Job) Snapshot() stream.SyncedPair { return j.snapshot }

// Invalidated reports whether the job's result has been marked unwanted.
func (j *Job) Invalidated() bool { return j.invalidated }

// Fault returns the executor fault that finalized this job, if any.
func (j *Job) Fault() error { return j.fault }

// FinalizedAt returns the tick recorded at the Running→Finalized
// transition. Meaningful only once the state has left Running.
func (j *Job) FinalizedAt() Tick { return j.finalizedAtTick }

// step advances the executor up to n times or until it reports no more
// work. Only valid while Running with n > 0; anything else is a no-op,
// not an error. Returns how many advances were issued and whether the
// job finalized during this call.
//
// On executor completion the result is applied to the output iff the
// job is not invalidated at that instant; either way the state becomes
// Finalized and the tick is recorded. An executor fault also finalizes,
// with invalidated set, so the single slot can never wedge.
func (j *Job) step(n int, now Tick) (advanced int, finalized bool) {
	if j.state != StateRunning || n <= 0 {
		return 0, false
	}

	for i := 0; i < n; i++ {
		more, err := j.run.Advance()
		advanced++
		j.stepCursor++

		if err != nil {
			j.fault = errors.WrapExecutorFault(err, "advance")
			j.invalidated = true
			j.finalize(now)
			return advanced, true
		}
		if !more {
			j.finalize(now)
			return advanced, true
		}
	}

	return advanced, false
}

// finalize performs the Running→Finalized transition: applies the
// result unless invalidated, then records the tick.
func (j *Job) finalize(now Tick) {
	if !j.invalidated {
		if !j.output.store(j.run.Result()) {
			j.fault = errors.WrapExecutorFault(
				errors.Newf("result length does not match %dx%d output", j.output.Width(), j.output.Height()),
				"apply result")
			j.invalidated = true
		}
	}
	j.state = StateFinalized
	j.finalizedAtTick = now
}

// promote performs the delayed Finalized→Completed transition. Returns
// true exactly once, when at least delayTicks have elapsed since the
// finalize tick; all other calls are no-ops returning false.
func (j *Job) promote(now Tick, delayTicks int) bool {
	if j.state != StateFinalized {
		return false
	}
	if now < j.finalizedAtTick || int(now-j.finalizedAtTick) < delayTicks {
		return false
	}
	j.state = StateCompleted
	return true
}

// invalidate marks the job's result unwanted. Valid in any state,
// idempotent, never changes the state: stepping continues so the
// executor resource is always driven to completion. Returns true on
// the first call only.
func (j *Job) invalidate() bool {
	if j.invalidated {
		return false
	}
	j.invalidated = true
	return true
}
