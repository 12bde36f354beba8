package engine

import (
	"fmt"
	"time"

	"questwatch.gg/internal/protocol"
	"questwatch.gg/internal/sim/engine/macro"
	"questwatch.gg/internal/sim/engine/roster"
)

// handleControl executes one host control op. Failures are silent conditions
// carried in the RESULT code; nothing here can fail a tick.
func (e *Engine) handleControl(msg protocol.ControlMsg) protocol.ResultMsg {
	res := protocol.ResultMsg{
		Type:      protocol.TypeResult,
		RequestID: msg.RequestID,
		Op:        msg.Op,
	}
	switch msg.Op {
	case protocol.OpAddManual:
		timeout := e.settings.DefaultManualTimeout
		if msg.TimeoutS > 0 {
			timeout = time.Duration(msg.TimeoutS) * time.Second
		}
		if !e.entities.AddManual(msg.Name, timeout, e.now) {
			res.Code = protocol.ErrBadRequest
			res.Message = "empty name"
			return res
		}
		e.audit(AuditEntry{Op: "add_manual", Entity: msg.Name, Detail: timeout.String()})
		res.OK = true

	case protocol.OpClearManual:
		res.Removed = e.entities.ClearManual()
		e.audit(AuditEntry{Op: "clear_manual", Removed: res.Removed})
		res.OK = true

	case protocol.OpSetDefaultTimeout:
		if msg.TimeoutS <= 0 {
			res.Code = protocol.ErrBadRequest
			res.Message = "timeout must be positive"
			return res
		}
		e.settings.DefaultManualTimeout = time.Duration(msg.TimeoutS) * time.Second
		res.OK = true
		res.Message = fmt.Sprintf("default manual timeout %ds", msg.TimeoutS)

	case protocol.OpToggleShowCompleted:
		e.settings.ShowCompleted = !e.settings.ShowCompleted
		res.OK = true
		res.Message = fmt.Sprintf("show_completed=%v", e.settings.ShowCompleted)

	case protocol.OpToggleGroupOverride:
		e.settings.GroupOverride = !e.settings.GroupOverride
		res.OK = true
		res.Message = fmt.Sprintf("group_override=%v", e.settings.GroupOverride)

	case protocol.OpTarget:
		ent, ok := e.entities.Inspect(msg.Name)
		if !ok {
			res.Code = protocol.ErrNotFound
			if !e.haveReport {
				res.Code = protocol.ErrUnavailable
				res.Message = "no quest data yet"
			}
			return res
		}
		if ent.Class != roster.TurnInContact && ent.Progress >= 100 {
			res.Code = protocol.ErrIneligible
			res.Message = "completed"
			return res
		}
		if !e.oracle.Present(msg.Name) {
			res.Code = protocol.ErrIneligible
			res.Message = "not in range"
			return res
		}
		e.broadcast(protocol.CommandMsg{
			Type: protocol.TypeCommand,
			Tick: e.tick,
			Text: macro.TargetLine(ent.Name),
		})
		e.audit(AuditEntry{Op: "run_command", Entity: ent.Name})
		res.OK = true

	case protocol.OpInspect:
		ent, ok := e.entities.Inspect(msg.Name)
		if !ok {
			res.Code = protocol.ErrNotFound
			if !e.haveReport {
				// No provider report has arrived yet, so an objective lookup
				// cannot be answered either way.
				res.Code = protocol.ErrUnavailable
				res.Message = "no quest data yet"
			}
			return res
		}
		w := e.entityWire(ent)
		res.Entity = &w
		res.OK = true

	default:
		res.Code = protocol.ErrBadRequest
		res.Message = "unknown op"
	}
	return res
}

func (e *Engine) entityWire(ent roster.Entity) protocol.EntityWire {
	w := protocol.EntityWire{
		Name:     ent.Name,
		Class:    ent.Class.String(),
		Progress: ent.Progress,
		Present:  ent.Present,
		Source:   ent.Source,
	}
	if ent.Class == roster.ManualTarget {
		w.ManualLeftS = int(ent.ManualRemaining(e.now) / time.Second)
	}
	return w
}

func (e *Engine) rosterMsg() protocol.RosterMsg {
	pri := e.entities.PrioritizedEntities(e.settings.ShowCompleted)
	msg := protocol.RosterMsg{
		Type:     protocol.TypeRoster,
		Tick:     e.tick,
		Entities: make([]protocol.EntityWire, 0, len(pri)),
	}
	for _, ent := range pri {
		msg.Entities = append(msg.Entities, e.entityWire(ent))
	}
	return msg
}
