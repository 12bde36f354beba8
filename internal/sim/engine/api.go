package engine

import (
	"questwatch.gg/internal/protocol"
	"questwatch.gg/internal/sim/engine/roster"
)

// The submitters below are the only engine surface the transport touches.
// They hand inputs to the loop goroutine and never block it; bounded channels
// shed load from a flooding host instead of stalling the tick.

// Attach registers a session and returns its outbound message channel.
func (e *Engine) Attach(id string) (<-chan []byte, protocol.EngineParams) {
	out := make(chan []byte, 256)
	ack := make(chan protocol.EngineParams, 1)
	e.joinCh <- joinReq{id: id, out: out, ack: ack}
	return out, <-ack
}

// Detach drops a session. Its channel is abandoned, not closed, so late
// broadcasts cannot panic.
func (e *Engine) Detach(id string) {
	select {
	case e.leaveCh <- id:
	case <-e.stopCh:
	}
}

func (e *Engine) SubmitQuests(objectives []roster.Objective) {
	select {
	case e.questsCh <- questsInput{objectives: objectives}:
	default:
	}
}

func (e *Engine) SubmitSignal(msg protocol.SignalMsg) {
	select {
	case e.signalCh <- msg:
	default:
	}
}

func (e *Engine) SubmitSelect(name string) {
	select {
	case e.selectCh <- name:
	default:
	}
}

func (e *Engine) SubmitHover(name string) {
	select {
	case e.hoverCh <- name:
	default:
	}
}

func (e *Engine) SubmitGroup(msg protocol.GroupMsg) {
	select {
	case e.groupCh <- msg:
	default:
	}
}

// Control submits a control op and waits for its RESULT, which arrives on the
// tick boundary that executes it.
func (e *Engine) Control(msg protocol.ControlMsg) protocol.ResultMsg {
	resp := make(chan protocol.ResultMsg, 1)
	select {
	case e.controlCh <- controlReq{msg: msg, resp: resp}:
	case <-e.stopCh:
		return protocol.ResultMsg{Type: protocol.TypeResult, Op: msg.Op, Code: protocol.ErrUnavailable}
	}
	select {
	case res := <-resp:
		return res
	case <-e.stopCh:
		return protocol.ResultMsg{Type: protocol.TypeResult, Op: msg.Op, Code: protocol.ErrUnavailable}
	}
}
