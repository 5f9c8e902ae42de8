package depth

import "time"

// EventType classifies scheduler lifecycle events.
type EventType string

const (
	// EventStarted fires when a job is admitted into the single slot.
	EventStarted EventType = "started"
	// EventFinalized fires at the Running→Finalized boundary, whether
	// the result was applied or suppressed.
	EventFinalized EventType = "finalized"
	// EventCompleted fires at the delayed Finalized→Completed promotion.
	EventCompleted EventType = "completed"
	// EventInvalidated fires on the first effective invalidation of a
	// live job. Repeat invalidations are silent.
	EventInvalidated EventType = "invalidated"
	// EventFaulted fires when the executor refuses a snapshot at Begin,
	// before any job exists. Mid-run faults finalize the job instead
	// and are carried in EventFinalized.Fault.
	EventFaulted EventType = "faulted"
	// EventGateChanged fires when the gate adapter observes a mode edge.
	EventGateChanged EventType = "gate_changed"
)

// Event is a single scheduler lifecycle notification. Fields beyond
// Type, Tick and At are populated per event type; zero values mean
// not-applicable.
type Event struct {
	Type  EventType `json:"type"`
	JobID JobID     `json:"job_id,omitempty"`
	Tick  Tick      `json:"tick"`
	At    time.Time `json:"at"`

	ColorTimestamp time.Time `json:"color_timestamp,omitempty"`
	DepthTimestamp time.Time `json:"depth_timestamp,omitempty"`
	SkewMS         float64   `json:"skew_ms,omitempty"`

	Steps       int    `json:"steps,omitempty"`
	Invalidated bool   `json:"invalidated,omitempty"`
	Fault       string `json:"fault,omitempty"`

	GateFrom string `json:"gate_from,omitempty"`
	GateTo   string `json:"gate_to,omitempty"`
}

// EventSink receives scheduler lifecycle events. Implementations must
// not call back into the emitting Processor from OnEvent; the processor
// emits while holding its own lock.
type EventSink interface {
	OnEvent(ev Event)
}

// MultiSink fans one event out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) OnEvent(ev Event) {
	for _, s := range m {
		if s != nil {
			s.OnEvent(ev)
		}
	}
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) OnEvent(Event) {}
