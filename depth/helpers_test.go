package depth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NV7150/ImOTAR-sub000/errors"
	"github.com/NV7150/ImOTAR-sub000/stream"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// scriptRun completes after total advances. failAt is a 1-based advance
// index that faults; zero disables faulting.
type scriptRun struct {
	total    int
	failAt   int
	result   []float32
	advanced int
}

func (r *scriptRun) Advance() (bool, error) {
	if r.advanced >= r.total {
		return false, nil
	}
	r.advanced++
	if r.failAt > 0 && r.advanced == r.failAt {
		return false, errors.New("advance blew up")
	}
	return r.advanced < r.total, nil
}

func (r *scriptRun) Result() []float32 { return r.result }

// scriptExecutor hands out queued runs in order and remembers the last
// snapshot it was begun with.
type scriptExecutor struct {
	queue    []*scriptRun
	beginErr error
	begun    int
	lastPair stream.SyncedPair
}

func (e *scriptExecutor) Begin(pair stream.SyncedPair) (Run, error) {
	if e.beginErr != nil {
		return nil, e.beginErr
	}
	if len(e.queue) == 0 {
		return nil, errors.New("no scripted runs left")
	}
	run := e.queue[0]
	e.queue = e.queue[1:]
	e.begun++
	e.lastPair = pair
	return run, nil
}

type captureSink struct {
	events []Event
}

func (s *captureSink) OnEvent(ev Event) { s.events = append(s.events, ev) }

func (s *captureSink) ofType(t EventType) []Event {
	var out []Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type stubGate struct {
	state GateState
	fill  float32
}

func (g *stubGate) State() GateState   { return g.state }
func (g *stubGate) AbortFill() float32 { return g.fill }

// plane builds an n-pixel result filled with v.
func plane(n int, v float32) []float32 {
	p := make([]float32, n)
	for i := range p {
		p[i] = v
	}
	return p
}

// newTestProcessor wires a 2x2 output and a 100ms-skew synchronizer.
func newTestProcessor(t *testing.T, exec StepExecutor, delayTicks int, sink EventSink) *Processor {
	t.Helper()
	out, err := NewOutputBuffer(2, 2)
	require.NoError(t, err)
	syn, err := stream.NewSynchronizer(stream.SynchronizerConfig{MaxSkew: 100 * time.Millisecond}, nil)
	require.NoError(t, err)
	proc, err := NewProcessor(ProcessorConfig{PromoteDelayTicks: delayTicks}, exec, out, syn, sink, nil)
	require.NoError(t, err)
	return proc
}

// feedPair observes a color frame at offset and a depth frame 5ms
// later, which forms a pair well inside the test skew bound.
func feedPair(p *Processor, offset time.Duration) {
	p.ObserveColor(stream.Frame{Stream: stream.StreamColor, Timestamp: t0.Add(offset), Payload: "c"})
	p.ObserveDepth(stream.Frame{Stream: stream.StreamDepth, Timestamp: t0.Add(offset + 5*time.Millisecond), Payload: "d"})
}
