package depth

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/NV7150/ImOTAR-sub000/errors"
	"github.com/NV7150/ImOTAR-sub000/logger"
	"github.com/NV7150/ImOTAR-sub000/stream"
)

// ProcessorConfig carries the scheduling knobs.
type ProcessorConfig struct {
	// PromoteDelayTicks is how many ticks a finalized job is held before
	// promotion. Zero promotes on the first PromoteFinalized call at or
	// after the finalize tick.
	PromoteDelayTicks int
}

// ProcessorStats is a point-in-time snapshot of the scheduler counters.
type ProcessorStats struct {
	Tick             Tick   `json:"tick"`
	State            State  `json:"state"`
	CurrentJobID     JobID  `json:"current_job_id,omitempty"`
	JobsStarted      uint64 `json:"jobs_started"`
	JobsCompleted    uint64 `json:"jobs_completed"`
	JobsInvalidated  uint64 `json:"jobs_invalidated"`
	JobsFaulted      uint64 `json:"jobs_faulted"`
	BeginFaults      uint64 `json:"begin_faults"`
	StepsExecuted    uint64 `json:"steps_executed"`
	PendingDiscards  uint64 `json:"pending_discards"`
	OutputGeneration uint64 `json:"output_generation"`
}

// Processor is the scheduler around the single job slot. It pairs the
// two input streams, admits at most one job at a time, meters executor
// work in steps and applies results to the shared output buffer.
//
// The processor never ticks on its own: the host drives it through
// Tick, Step, PromoteFinalized and TryStartProcessing. All methods are
// safe for concurrent use, but the intended model is one control
// goroutine calling the scheduling methods in order while observers
// read Stats from elsewhere.
type Processor struct {
	cfg    ProcessorConfig
	exec   StepExecutor
	output *OutputBuffer
	syncer *stream.Synchronizer
	sink   EventSink
	log    *zap.SugaredLogger

	mu          sync.Mutex
	tick        Tick
	job         *Job
	pending     *stream.PendingSlot
	finalizedID JobID
	completedID JobID

	jobsStarted     uint64
	jobsCompleted   uint64
	jobsInvalidated uint64
	jobsFaulted     uint64
	beginFaults     uint64
	stepsExecuted   uint64
}

// NewProcessor wires the scheduler. A nil sink is replaced with NopSink
// and a nil log with a component logger.
func NewProcessor(cfg ProcessorConfig, exec StepExecutor, output *OutputBuffer, syncer *stream.Synchronizer, sink EventSink, log *zap.SugaredLogger) (*Processor, error) {
	if exec == nil {
		return nil, errors.NewInvalidConfigError("processor requires an executor")
	}
	if output == nil {
		return nil, errors.NewInvalidConfigError("processor requires an output buffer")
	}
	if syncer == nil {
		return nil, errors.NewInvalidConfigError("processor requires a synchronizer")
	}
	if cfg.PromoteDelayTicks < 0 {
		return nil, errors.NewInvalidConfigError("promote delay must be >= 0, got %d", cfg.PromoteDelayTicks)
	}
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = logger.ComponentLogger("depth.processor")
	}
	return &Processor{
		cfg:     cfg,
		exec:    exec,
		output:  output,
		syncer:  syncer,
		sink:    sink,
		log:     log,
		pending: stream.NewPendingSlot(),
	}, nil
}

// ObserveColor records a color frame and captures a pair when one
// forms. Observation never blocks on the job slot.
func (p *Processor) ObserveColor(f stream.Frame) {
	p.syncer.ObserveColor(f)
	p.capturePair()
}

// ObserveDepth records a depth frame and captures a pair when one
// forms.
func (p *Processor) ObserveDepth(f stream.Frame) {
	p.syncer.ObserveDepth(f)
	p.capturePair()
}

// capturePair drains the synchronizer into the pending slot so a pair
// formed while the slot is busy survives until the next start attempt.
// The slot keeps only the newest pair.
func (p *Processor) capturePair() {
	if pair, ok := p.syncer.TrySync(); ok {
		p.pending.Put(pair)
	}
}

// TryStartProcessing admits a new job when the slot is free and a
// synced pair is available. Returns the new JobID, or JobIDNone when
// the slot is occupied, no pair exists, or the executor refuses the
// snapshot. A refused snapshot is consumed and dropped.
func (p *Processor) TryStartProcessing() JobID {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.job != nil {
		return JobIDNone
	}

	pair, ok := p.pending.Take()
	if !ok {
		pair, ok = p.syncer.TrySync()
	}
	if !ok {
		return JobIDNone
	}

	run, err := p.exec.Begin(pair)
	if err != nil {
		p.beginFaults++
		p.log.Warnw("executor refused snapshot",
			logger.FieldTick, uint64(p.tick),
			logger.FieldSkewMS, durationMS(pair.Skew()),
			logger.FieldError, err,
		)
		p.emit(Event{
			Type:           EventFaulted,
			ColorTimestamp: pair.ColorTimestamp,
			DepthTimestamp: pair.DepthTimestamp,
			SkewMS:         durationMS(pair.Skew()),
			Fault:          err.Error(),
		})
		return JobIDNone
	}

	id := NewJobID()
	p.job = newJob(id, pair, run, p.output)
	p.jobsStarted++
	p.log.Debugw("job started",
		logger.FieldJobID, id.Short(),
		logger.FieldTick, uint64(p.tick),
		logger.FieldSkewMS, durationMS(pair.Skew()),
	)
	p.emit(Event{
		Type:           EventStarted,
		JobID:          id,
		ColorTimestamp: pair.ColorTimestamp,
		DepthTimestamp: pair.DepthTimestamp,
		SkewMS:         durationMS(pair.Skew()),
	})
	return id
}

// Step advances the in-flight job by up to n executor steps. Returns
// the number actually issued; zero when the slot is empty or the job is
// past Running. A job that completes or faults during the call
// finalizes at the current tick.
func (p *Processor) Step(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.job == nil {
		return 0
	}

	advanced, finalized := p.job.step(n, p.tick)
	p.stepsExecuted += uint64(advanced)
	if !finalized {
		return advanced
	}

	p.finalizedID = p.job.ID()
	ev := Event{
		Type:        EventFinalized,
		JobID:       p.job.ID(),
		Steps:       p.job.StepCursor(),
		Invalidated: p.job.Invalidated(),
	}
	if fault := p.job.Fault(); fault != nil {
		p.jobsFaulted++
		ev.Fault = fault.Error()
		p.log.Warnw("job faulted",
			logger.FieldJobID, p.job.ID().Short(),
			logger.FieldTick, uint64(p.tick),
			logger.FieldSteps, p.job.StepCursor(),
			logger.FieldError, fault,
		)
	} else {
		p.log.Debugw("job finalized",
			logger.FieldJobID, p.job.ID().Short(),
			logger.FieldTick, uint64(p.tick),
			logger.FieldSteps, p.job.StepCursor(),
			"applied", !p.job.Invalidated(),
		)
	}
	p.emit(ev)
	return advanced
}

// InvalidateJob marks the live job with the given id invalidated.
// Returns true only when this call caused the transition; unknown ids,
// an empty slot and repeat calls all return false.
func (p *Processor) InvalidateJob(id JobID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id.IsNone() || p.job == nil || p.job.ID() != id {
		return false
	}
	if !p.job.invalidate() {
		return false
	}
	p.jobsInvalidated++
	p.log.Debugw("job invalidated",
		logger.FieldJobID, id.Short(),
		logger.FieldTick, uint64(p.tick),
		logger.FieldState, string(p.job.State()),
	)
	p.emit(Event{Type: EventInvalidated, JobID: id})
	return true
}

// Tick advances the scheduler clock and returns the new value.
func (p *Processor) Tick() Tick {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tick++
	return p.tick
}

// PromoteFinalized promotes the in-flight job once the configured delay
// has elapsed since it finalized, freeing the slot. Returns the
// completed JobID, or JobIDNone when nothing promoted.
func (p *Processor) PromoteFinalized() JobID {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.job == nil || !p.job.promote(p.tick, p.cfg.PromoteDelayTicks) {
		return JobIDNone
	}

	id := p.job.ID()
	p.completedID = id
	p.job = nil
	p.jobsCompleted++
	p.log.Debugw("job completed",
		logger.FieldJobID, id.Short(),
		logger.FieldTick, uint64(p.tick),
	)
	p.emit(Event{Type: EventCompleted, JobID: id})
	return id
}

// CurrentTick returns the scheduler clock without advancing it.
func (p *Processor) CurrentTick() Tick {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tick
}

// CurrentJobID returns the id of the job occupying the slot, or
// JobIDNone when the slot is free.
func (p *Processor) CurrentJobID() JobID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.job == nil {
		return JobIDNone
	}
	return p.job.ID()
}

// CurrentState returns the in-flight job's state, or StateIdle when the
// slot is free.
func (p *Processor) CurrentState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.job == nil {
		return StateIdle
	}
	return p.job.State()
}

// FinalizedJobID returns the id of the most recent job to finalize.
func (p *Processor) FinalizedJobID() JobID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finalizedID
}

// CompletedJobID returns the id of the most recent job to complete.
func (p *Processor) CompletedJobID() JobID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completedID
}

// Output returns the shared output buffer.
func (p *Processor) Output() *OutputBuffer { return p.output }

// Stats returns a snapshot of the scheduler counters.
func (p *Processor) Stats() ProcessorStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := ProcessorStats{
		Tick:             p.tick,
		State:            StateIdle,
		JobsStarted:      p.jobsStarted,
		JobsCompleted:    p.jobsCompleted,
		JobsInvalidated:  p.jobsInvalidated,
		JobsFaulted:      p.jobsFaulted,
		BeginFaults:      p.beginFaults,
		StepsExecuted:    p.stepsExecuted,
		PendingDiscards:  p.pending.Discards(),
		OutputGeneration: p.output.Generation(),
	}
	if p.job != nil {
		s.State = p.job.State()
		s.CurrentJobID = p.job.ID()
	}
	return s
}

// SyncStats returns a snapshot of the pairing counters.
func (p *Processor) SyncStats() stream.SyncStats {
	return p.syncer.Stats()
}

// emit stamps the event with the current tick and wall time. Callers
// hold p.mu, so sinks must not call back into the processor.
func (p *Processor) emit(ev Event) {
	ev.Tick = p.tick
	ev.At = time.Now()
	p.sink.OnEvent(ev)
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
