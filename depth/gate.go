package depth

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/NV7150/ImOTAR-sub000/errors"
	"github.com/NV7150/ImOTAR-sub000/logger"
)

// GateState is the externally controlled permission mode, polled once
// per tick.
type GateState string

const (
	// GateRun permits stepping and new starts.
	GateRun GateState = "run"
	// GatePauseDrain blocks new starts and permits exactly one last
	// step/promote pass before freezing.
	GatePauseDrain GateState = "pause_drain"
	// GateAbortFast suppresses the live job's result and overwrites the
	// output with a sentinel, while still draining the executor.
	GateAbortFast GateState = "abort_fast"
)

// IsValidGateState returns true if the string is a valid GateState
func IsValidGateState(s string) bool {
	switch GateState(s) {
	case GateRun, GatePauseDrain, GateAbortFast:
		return true
	default:
		return false
	}
}

// Gate is the external permission state machine. Implementations must
// return quickly; the adapter polls State once per tick. AbortFill is
// the sentinel written into the output when the gate enters abort-fast.
type Gate interface {
	State() GateState
	AbortFill() float32
}

// GateAdapter drives a Processor under a Gate's permission mode. The
// host calls Tick once per control-loop iteration; the adapter
// translates the polled gate state into scheduler calls.
//
// Mode rules per tick:
//   - run: tick, step, promote, then one start attempt.
//   - pause_drain: one last tick/step/promote pass on entry, then
//     nothing until the gate leaves the mode. No starts.
//   - abort_fast: on entry the live job is invalidated and the output
//     filled with the sentinel before any stepping. Every abort tick
//     still ticks, steps and promotes so the executor drains and the
//     slot frees. No starts; leaving abort does not resume anything.
type GateAdapter struct {
	proc *Processor
	gate Gate
	sink EventSink
	log  *zap.SugaredLogger

	mu           sync.Mutex
	stepsPerTick int
	lastState    GateState
	drained      bool
}

// NewGateAdapter wires a Processor to a Gate. stepsPerTick is the step
// budget issued per run/drain tick and must be at least 1.
func NewGateAdapter(proc *Processor, gate Gate, stepsPerTick int, sink EventSink, log *zap.SugaredLogger) (*GateAdapter, error) {
	if proc == nil {
		return nil, errors.NewInvalidConfigError("gate adapter requires a processor")
	}
	if gate == nil {
		return nil, errors.NewInvalidConfigError("gate adapter requires a gate")
	}
	if stepsPerTick < 1 {
		return nil, errors.NewInvalidConfigError("steps per tick must be >= 1, got %d", stepsPerTick)
	}
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = logger.ComponentLogger("depth.gate")
	}
	return &GateAdapter{
		proc:         proc,
		gate:         gate,
		sink:         sink,
		log:          log,
		stepsPerTick: stepsPerTick,
		lastState:    GateRun,
	}, nil
}

// Tick polls the gate and performs one scheduling pass under the
// current mode.
func (a *GateAdapter) Tick() {
	a.mu.Lock()
	defer a.mu.Unlock()

	state := a.gate.State()
	entering := state != a.lastState
	if entering {
		a.log.Infow("gate changed",
			logger.FieldMode, string(state),
			logger.FieldTick, uint64(a.proc.CurrentTick()),
		)
		a.sink.OnEvent(Event{
			Type:     EventGateChanged,
			Tick:     a.proc.CurrentTick(),
			At:       time.Now(),
			GateFrom: string(a.lastState),
			GateTo:   string(state),
		})
		a.lastState = state
	}

	switch state {
	case GateRun:
		a.proc.Tick()
		a.proc.Step(a.stepsPerTick)
		a.proc.PromoteFinalized()
		a.proc.TryStartProcessing()

	case GatePauseDrain:
		if entering {
			a.drained = false
		}
		if a.drained {
			return
		}
		a.proc.Tick()
		a.proc.Step(a.stepsPerTick)
		a.proc.PromoteFinalized()
		a.drained = true

	case GateAbortFast:
		a.proc.Tick()
		if entering {
			if id := a.proc.CurrentJobID(); !id.IsNone() {
				a.proc.InvalidateJob(id)
			}
			a.proc.Output().Fill(a.gate.AbortFill())
		}
		a.proc.Step(a.stepsPerTick)
		a.proc.PromoteFinalized()

	default:
		a.log.Warnw("unknown gate state, holding scheduler",
			logger.FieldMode, string(state),
		)
	}
}

// SetStepsPerTick changes the per-tick step budget, typically from a
// config reload.
func (a *GateAdapter) SetStepsPerTick(n int) error {
	if n < 1 {
		return errors.NewInvalidConfigError("steps per tick must be >= 1, got %d", n)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if n != a.stepsPerTick {
		a.log.Infow("steps per tick updated", logger.FieldSteps, n)
		a.stepsPerTick = n
	}
	return nil
}

// StepsPerTick returns the current per-tick step budget.
func (a *GateAdapter) StepsPerTick() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stepsPerTick
}

// LastState returns the most recently observed gate state.
func (a *GateAdapter) LastState() GateState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastState
}
