package engine

import (
	"context"
	"encoding/json"
	"time"

	"questwatch.gg/internal/protocol"
	"questwatch.gg/internal/sim/engine/roster"
)

type joinReq struct {
	id  string
	out chan []byte
	ack chan protocol.EngineParams
}

type questsInput struct {
	objectives []roster.Objective
}

type controlReq struct {
	msg  protocol.ControlMsg
	resp chan protocol.ResultMsg
}

// Inputs is everything one tick can consume. Later values win within a tick
// for select/hover/group; signals and controls are applied in arrival order.
type Inputs struct {
	Report   *[]roster.Objective
	Signals  []protocol.SignalMsg
	Select   *string
	Hover    *string
	Group    *protocol.GroupMsg
	Controls []protocol.ControlMsg
}

// Run drives the loop until the context is cancelled or Stop is called.
// Inputs arriving between ticks are buffered and applied at the next tick
// boundary, the only place state ever changes.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.tickDur)
	defer ticker.Stop()

	var pending Inputs
	var pendingResp []chan protocol.ResultMsg

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stopCh:
			return nil
		case req := <-e.joinCh:
			e.handleJoin(req)
		case id := <-e.leaveCh:
			delete(e.sessions, id)
		case in := <-e.questsCh:
			objs := in.objectives
			pending.Report = &objs
		case sig := <-e.signalCh:
			pending.Signals = append(pending.Signals, sig)
		case name := <-e.selectCh:
			n := name
			pending.Select = &n
		case name := <-e.hoverCh:
			n := name
			pending.Hover = &n
		case g := <-e.groupCh:
			gg := g
			pending.Group = &gg
		case req := <-e.controlCh:
			pending.Controls = append(pending.Controls, req.msg)
			pendingResp = append(pendingResp, req.resp)
		case <-ticker.C:
			results := e.step(pending)
			for i, ch := range pendingResp {
				if ch != nil && i < len(results) {
					ch <- results[i]
				}
			}
			pending = Inputs{}
			pendingResp = nil
		}
	}
}

func (e *Engine) Stop() { close(e.stopCh) }

// StepOnce advances exactly one tick with the given inputs. It exists for
// deterministic tests and replays and must not race a running loop.
func (e *Engine) StepOnce(in Inputs) (tick uint64, digest string) {
	e.step(in)
	return e.tick, e.stateDigest()
}

// StepResults is StepOnce plus the RESULT messages for in.Controls, in order.
func (e *Engine) StepResults(in Inputs) []protocol.ResultMsg {
	return e.step(in)
}

// AttachDirect registers a session without going through the loop channels.
// Like StepOnce, it must not race a running loop.
func (e *Engine) AttachDirect(id string, buffer int) <-chan []byte {
	out := make(chan []byte, buffer)
	e.sessions[id] = &session{id: id, out: out}
	return out
}

func (e *Engine) step(in Inputs) []protocol.ResultMsg {
	e.tick++
	e.now += e.tickDur
	e.probesThisTick = nil
	e.signalsThisTick = nil

	// 1. Inputs.
	if in.Report != nil {
		e.report = *in.Report
		e.haveReport = true
		e.reportDirty = true
	}
	for _, sig := range in.Signals {
		if e.oracle.HandleSignal(sig.Source, sig.Action, sig.Entity) {
			e.signalsThisTick = append(e.signalsThisTick, sig.Entity)
		}
	}
	if in.Group != nil {
		e.group = groupState{InGroup: in.Group.InGroup, IsLeader: in.Group.IsLeader}
	}
	var results []protocol.ResultMsg
	for _, c := range in.Controls {
		results = append(results, e.handleControl(c))
	}

	// 2. Aggregation: refresh on new provider data, expire manual records.
	if e.reportDirty {
		e.entities.Refresh(e.report)
		e.reportDirty = false
	}
	if removed := e.entities.ExpireManual(e.now); removed > 0 {
		e.audit(AuditEntry{Op: "expire_manual", Removed: removed})
	}

	// 3. Presence: scan cadence is the oracle's own; it probes absent
	// candidates and sweeps stale sightings.
	e.oracle.Tick(e.tickDur)
	e.entities.StampPresence(e.oracle.Present, e.now)

	// 4. Marking.
	if in.Select != nil && *in.Select != e.selected {
		e.selected = *in.Select
		if e.selected != "" {
			e.lastSelected = e.selected
		}
		if !e.assigner.SetSelected(e.selected, e.policy(), e.now) && e.selected != "" {
			e.audit(AuditEntry{Op: "mark_selected", Entity: e.selected, Code: protocol.ErrIneligible})
		}
	}
	if in.Hover != nil && *in.Hover != e.hovered {
		e.hovered = *in.Hover
		e.assigner.SetHovered(e.hovered, e.policy(), e.now)
	}
	e.assigner.Tick(e.now)

	// 5. Command buffer from the present, prioritized subset.
	text, wrote := e.builder.Build(e.presentPrioritized(), e.lastSelected, e.writeBuffer)
	if wrote {
		e.audit(AuditEntry{Op: "buffer_write", Detail: text})
	}

	// 6. Observation out, tick log, periodic snapshot.
	e.broadcast(e.rosterMsg())
	e.logTick(in, text, wrote)
	if e.snapshotSink != nil && e.tune.SnapshotEveryTicks > 0 && e.tick%uint64(e.tune.SnapshotEveryTicks) == 0 {
		e.snapshotSink(e.Snapshot())
	}
	return results
}

// presentPrioritized is the prioritized list narrowed to entities the oracle
// currently sees.
func (e *Engine) presentPrioritized() []roster.Entity {
	pri := e.entities.PrioritizedEntities(e.settings.ShowCompleted)
	out := pri[:0]
	for _, ent := range pri {
		if e.oracle.Present(ent.Name) {
			out = append(out, ent)
		}
	}
	return out
}

func (e *Engine) logTick(in Inputs, buffer string, wrote bool) {
	if e.tickLogger == nil {
		return
	}
	entry := TickLogEntry{
		Tick:     e.tick,
		Signals:  e.signalsThisTick,
		Select:   in.Select,
		Hover:    in.Hover,
		Controls: in.Controls,
		Probes:   e.probesThisTick,
		Digest:   e.stateDigest(),
	}
	if in.Report != nil {
		recs := make([]ObjectiveRec, 0, len(*in.Report))
		for _, o := range *in.Report {
			recs = append(recs, ObjectiveRec(o))
		}
		entry.Report = &recs
	}
	if in.Group != nil {
		entry.Group = &GroupRec{InGroup: in.Group.InGroup, IsLeader: in.Group.IsLeader}
	}
	if wrote {
		entry.Buffer = buffer
	}
	_ = e.tickLogger.WriteTick(entry)
}

func (e *Engine) handleJoin(req joinReq) {
	e.sessions[req.id] = &session{id: req.id, out: req.out}
	req.ack <- e.Params()
}

func (e *Engine) broadcast(msg any) {
	if len(e.sessions) == 0 {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, s := range e.sessions {
		select {
		case s.out <- b:
		default:
			// Slow host: drop rather than stall the loop.
		}
	}
}
