package commands

import (
	"testing"

	"github.com/NV7150/ImOTAR-sub000/depth"
)

var _ depth.Gate = (*signalGate)(nil)

func TestSignalGate_StartsInRun(t *testing.T) {
	g := newSignalGate(-1)
	if g.State() != depth.GateRun {
		t.Errorf("initial state = %s, want %s", g.State(), depth.GateRun)
	}
	if g.AbortFill() != -1 {
		t.Errorf("AbortFill() = %g, want -1", g.AbortFill())
	}
}

func TestSignalGate_SetIsVisibleToState(t *testing.T) {
	g := newSignalGate(0)

	g.Set(depth.GatePauseDrain)
	if g.State() != depth.GatePauseDrain {
		t.Errorf("state = %s, want %s", g.State(), depth.GatePauseDrain)
	}

	g.Set(depth.GateAbortFast)
	if g.State() != depth.GateAbortFast {
		t.Errorf("state = %s, want %s", g.State(), depth.GateAbortFast)
	}

	g.Set(depth.GateRun)
	if g.State() != depth.GateRun {
		t.Errorf("state = %s, want %s", g.State(), depth.GateRun)
	}
}
