// Package enginetest is a black-box helper for driving an engine through
// StepOnce and observing its host-facing traffic. It stays on exported APIs
// so tests can live outside the engine package.
package enginetest

import (
	"encoding/json"
	"testing"
	"time"

	"questwatch.gg/internal/protocol"
	"questwatch.gg/internal/sim/engine"
	"questwatch.gg/internal/sim/engine/roster"
	"questwatch.gg/internal/sim/tuning"
)

type Harness struct {
	T *testing.T
	E *engine.Engine

	out <-chan []byte

	// Host-facing traffic collected since the last Drain call.
	Probes   []protocol.ProbeMsg
	Marks    []protocol.MarkMsg
	Buffers  []protocol.BufferMsg
	Commands []protocol.CommandMsg
	Rosters  []protocol.RosterMsg
}

// Tune returns the tuning used by harness engines: the defaults with a 4 Hz
// tick so one tick equals one polling window.
func Tune() tuning.Tuning {
	t := tuning.Default()
	t.TickRateHz = 4
	return t
}

func NewHarness(t *testing.T) *Harness {
	return NewHarnessWithTuning(t, Tune())
}

func NewHarnessWithTuning(t *testing.T, tune tuning.Tuning) *Harness {
	t.Helper()
	if err := tune.Validate(); err != nil {
		t.Fatalf("tuning: %v", err)
	}
	e := engine.New(engine.Config{ID: "engine_test", Tune: tune})
	h := &Harness{T: t, E: e}
	h.out = e.AttachDirect("H1", 1024)
	return h
}

// Step advances one tick with the given inputs and drains traffic.
func (h *Harness) Step(in engine.Inputs) (tick uint64, digest string) {
	h.T.Helper()
	tick, digest = h.E.StepOnce(in)
	h.drain()
	return tick, digest
}

// StepN advances n ticks with empty inputs.
func (h *Harness) StepN(n int) {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.Step(engine.Inputs{})
	}
}

// StepFor advances whole ticks until at least d of simulated time has passed.
func (h *Harness) StepFor(d time.Duration) {
	h.T.Helper()
	start := h.E.Now()
	for h.E.Now()-start < d {
		h.Step(engine.Inputs{})
	}
}

// Report steps one tick delivering a fresh quest report.
func (h *Harness) Report(objs ...roster.Objective) {
	h.T.Helper()
	h.Step(engine.Inputs{Report: &objs})
}

// Signal steps one tick delivering an own-namespace restricted-action signal
// for each named entity.
func (h *Harness) Signal(names ...string) {
	h.T.Helper()
	tune := Tune()
	in := engine.Inputs{}
	for _, name := range names {
		in.Signals = append(in.Signals, protocol.SignalMsg{
			Type:   protocol.TypeSignal,
			Source: tune.ActionNamespace,
			Action: tune.ActionName,
			Entity: name,
		})
	}
	h.Step(in)
}

// Select steps one tick with a selection change.
func (h *Harness) Select(name string) {
	h.T.Helper()
	h.Step(engine.Inputs{Select: &name})
}

// Hover steps one tick with a hover change.
func (h *Harness) Hover(name string) {
	h.T.Helper()
	h.Step(engine.Inputs{Hover: &name})
}

// Control steps one tick carrying a single control op and returns its RESULT.
func (h *Harness) Control(msg protocol.ControlMsg) protocol.ResultMsg {
	h.T.Helper()
	results := h.E.StepResults(engine.Inputs{Controls: []protocol.ControlMsg{msg}})
	h.drain()
	if len(results) != 1 {
		h.T.Fatalf("expected one result, got %d", len(results))
	}
	return results[0]
}

// Reset discards collected traffic.
func (h *Harness) Reset() {
	h.Probes = nil
	h.Marks = nil
	h.Buffers = nil
	h.Commands = nil
	h.Rosters = nil
}

// LastRoster returns the most recent roster observation.
func (h *Harness) LastRoster() protocol.RosterMsg {
	h.T.Helper()
	if len(h.Rosters) == 0 {
		h.T.Fatalf("no roster observed")
	}
	return h.Rosters[len(h.Rosters)-1]
}

func (h *Harness) drain() {
	for {
		select {
		case b := <-h.out:
			base, err := protocol.DecodeBase(b)
			if err != nil {
				h.T.Fatalf("bad message: %v", err)
			}
			switch base.Type {
			case protocol.TypeProbe:
				var m protocol.ProbeMsg
				_ = json.Unmarshal(b, &m)
				h.Probes = append(h.Probes, m)
			case protocol.TypeMark:
				var m protocol.MarkMsg
				_ = json.Unmarshal(b, &m)
				h.Marks = append(h.Marks, m)
			case protocol.TypeBuffer:
				var m protocol.BufferMsg
				_ = json.Unmarshal(b, &m)
				h.Buffers = append(h.Buffers, m)
			case protocol.TypeCommand:
				var m protocol.CommandMsg
				_ = json.Unmarshal(b, &m)
				h.Commands = append(h.Commands, m)
			case protocol.TypeRoster:
				var m protocol.RosterMsg
				_ = json.Unmarshal(b, &m)
				h.Rosters = append(h.Rosters, m)
			}
		default:
			return
		}
	}
}
