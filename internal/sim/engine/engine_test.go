package engine

import (
	"testing"

	"questwatch.gg/internal/protocol"
	"questwatch.gg/internal/sim/engine/marker"
	"questwatch.gg/internal/sim/engine/roster"
	"questwatch.gg/internal/sim/tuning"
)

type memTickLog struct{ entries []TickLogEntry }

func (l *memTickLog) WriteTick(e TickLogEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

type memAuditLog struct{ entries []AuditEntry }

func (l *memAuditLog) WriteAudit(e AuditEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

func testEngine() *Engine {
	t := tuning.Default()
	t.TickRateHz = 4
	return New(Config{ID: "engine_test", Tune: t})
}

func report() []roster.Objective {
	return []roster.Objective{
		{Name: "Bob", Collected: 4, Needed: 10},
		{Name: "Alice", QuestComplete: true, Finisher: true},
	}
}

func signalFor(name string) protocol.SignalMsg {
	t := tuning.Default()
	return protocol.SignalMsg{Type: protocol.TypeSignal, Source: t.ActionNamespace, Action: t.ActionName, Entity: name}
}

func TestHoverMarksOnlyUnmarked(t *testing.T) {
	e := testEngine()
	objs := report()
	e.StepOnce(Inputs{Report: &objs})

	name := "Bob"
	e.StepOnce(Inputs{Hover: &name})
	if e.markers["Bob"] != marker.HoverMarker {
		t.Fatalf("hover did not apply moon: %v", e.markers)
	}

	// Selecting Bob displaces the hover marker through clear-then-set.
	e.StepOnce(Inputs{Select: &name})
	e.StepOnce(Inputs{})
	if e.markers["Bob"] != marker.SelectedMarker {
		t.Fatalf("selection did not take over: %v", e.markers)
	}

	// Hovering a marked entity does nothing; ending the hover must not
	// clear the selection marker.
	e.StepOnce(Inputs{Hover: &name})
	empty := ""
	e.StepOnce(Inputs{Hover: &empty})
	if e.markers["Bob"] != marker.SelectedMarker {
		t.Fatalf("hover-end clobbered the selection marker: %v", e.markers)
	}
}

func TestSetDefaultTimeoutFeedsAddManual(t *testing.T) {
	e := testEngine()
	res := e.StepResults(Inputs{Controls: []protocol.ControlMsg{
		{Type: protocol.TypeControl, Op: protocol.OpSetDefaultTimeout, TimeoutS: 30},
		{Type: protocol.TypeControl, Op: protocol.OpAddManual, Name: "Rare Spawn"},
	}})
	if len(res) != 2 || !res[0].OK || !res[1].OK {
		t.Fatalf("controls failed: %+v", res)
	}

	ent, ok := e.Inspect("Rare Spawn")
	if !ok || ent.Timeout.Seconds() != 30 {
		t.Fatalf("new default not applied: %+v", ent)
	}

	res = e.StepResults(Inputs{Controls: []protocol.ControlMsg{
		{Type: protocol.TypeControl, Op: protocol.OpSetDefaultTimeout, TimeoutS: 0},
	}})
	if res[0].OK || res[0].Code != protocol.ErrBadRequest {
		t.Fatalf("zero timeout accepted: %+v", res[0])
	}
}

func TestClearManualReportsRemovedCount(t *testing.T) {
	e := testEngine()
	e.StepResults(Inputs{Controls: []protocol.ControlMsg{
		{Type: protocol.TypeControl, Op: protocol.OpAddManual, Name: "A"},
		{Type: protocol.TypeControl, Op: protocol.OpAddManual, Name: "B"},
	}})
	res := e.StepResults(Inputs{Controls: []protocol.ControlMsg{
		{Type: protocol.TypeControl, Op: protocol.OpClearManual},
	}})
	if !res[0].OK || res[0].Removed != 2 {
		t.Fatalf("clear_manual: %+v", res[0])
	}
}

func TestAuditTrailForIneligibleSelect(t *testing.T) {
	e := testEngine()
	audit := &memAuditLog{}
	e.SetAuditLogger(audit)

	objs := report()
	e.StepOnce(Inputs{Report: &objs, Group: &protocol.GroupMsg{InGroup: true, IsLeader: false}})
	name := "Bob"
	e.StepOnce(Inputs{Select: &name})

	found := false
	for _, entry := range audit.entries {
		if entry.Op == "mark_selected" && entry.Code == protocol.ErrIneligible && entry.Entity == "Bob" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing ineligible audit entry: %+v", audit.entries)
	}
}

func TestTickLogCarriesReplayInputs(t *testing.T) {
	e := testEngine()
	log := &memTickLog{}
	e.SetTickLogger(log)

	objs := report()
	e.StepOnce(Inputs{Report: &objs})
	e.StepOnce(Inputs{Signals: []protocol.SignalMsg{signalFor("Bob")}})

	if len(log.entries) != 2 {
		t.Fatalf("tick log entries: %d", len(log.entries))
	}
	first := log.entries[0]
	if first.Report == nil || len(*first.Report) != 2 {
		t.Fatalf("report not logged: %+v", first)
	}
	if len(first.Probes) != 2 {
		t.Fatalf("probes not logged: %+v", first.Probes)
	}
	if first.Buffer == "" {
		t.Fatalf("first buffer write not logged")
	}
	second := log.entries[1]
	if len(second.Signals) != 1 || second.Signals[0] != "Bob" {
		t.Fatalf("signals not logged: %+v", second)
	}
	if second.Digest == "" || second.Digest == first.Digest {
		t.Fatalf("digests should be set and differ across state change")
	}
}

func TestForeignSignalIgnored(t *testing.T) {
	e := testEngine()
	objs := report()
	e.StepOnce(Inputs{Report: &objs})
	e.StepOnce(Inputs{Signals: []protocol.SignalMsg{
		{Type: protocol.TypeSignal, Source: "OtherAddon", Action: "ATTEMPT_INTERACT", Entity: "Bob"},
	}})

	ent, _ := e.Inspect("Bob")
	if ent.Present {
		t.Fatalf("foreign-namespace signal flipped presence")
	}
}

func TestLastSelectedLeadsBuffer(t *testing.T) {
	e := testEngine()
	objs := []roster.Objective{
		{Name: "Aards", Collected: 0, Needed: 5},
		{Name: "Zeds", Collected: 0, Needed: 5},
	}
	e.StepOnce(Inputs{Report: &objs})
	e.StepOnce(Inputs{Signals: []protocol.SignalMsg{signalFor("Aards"), signalFor("Zeds")}})

	name := "Zeds"
	e.StepOnce(Inputs{Select: &name})
	want := "/cleartarget [dead]\n/targetexact Zeds\n/targetexact Aards"
	if got := e.buffers[e.tune.BufferSlot]; got != want {
		t.Fatalf("buffer %q, want %q", got, want)
	}
}
