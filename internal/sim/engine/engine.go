// Package engine runs the presence detection and prioritization core as a
// single-threaded authoritative loop. All state is owned by the loop
// goroutine; hosts talk to it through channels and receive value snapshots.
package engine

import (
	"time"

	"questwatch.gg/internal/persistence/snapshot"
	"questwatch.gg/internal/protocol"
	"questwatch.gg/internal/sim/engine/macro"
	"questwatch.gg/internal/sim/engine/marker"
	"questwatch.gg/internal/sim/engine/presence"
	"questwatch.gg/internal/sim/engine/roster"
	"questwatch.gg/internal/sim/tuning"
)

type Config struct {
	ID   string
	Tune tuning.Tuning
}

// Settings is the runtime-mutable slice of the configuration surface. It is
// injected at construction and mutated only by control ops on the loop
// goroutine.
type Settings struct {
	ShowCompleted        bool
	GroupOverride        bool
	DefaultManualTimeout time.Duration
}

type groupState struct {
	InGroup  bool
	IsLeader bool
}

// Engine owns the four core components plus the host-facing ledgers.
type Engine struct {
	cfg  Config
	tune tuning.Tuning

	tick    uint64
	now     time.Duration
	tickDur time.Duration

	oracle   *presence.Oracle
	entities *roster.Aggregator
	assigner *marker.Assigner
	builder  *macro.Builder

	settings Settings
	group    groupState

	// Latest quest-data report. nil means the provider has not reported yet
	// (or reported an outage); refreshes then yield an empty objective set.
	report      []roster.Objective
	haveReport  bool
	reportDirty bool

	selected     string
	hovered      string
	lastSelected string

	// Ledgers mirroring host-visible state the engine itself wrote.
	markers map[string]marker.Marker
	buffers map[string]string

	sessions map[string]*session

	// Channels feeding the loop. See runtime_loop.go.
	joinCh    chan joinReq
	leaveCh   chan string
	questsCh  chan questsInput
	signalCh  chan protocol.SignalMsg
	selectCh  chan string
	hoverCh   chan string
	groupCh   chan protocol.GroupMsg
	controlCh chan controlReq
	stopCh    chan struct{}

	// Per-tick records for the tick log.
	probesThisTick  []string
	signalsThisTick []string

	tickLogger  TickLogger
	auditLogger AuditLogger

	snapshotSink func(snapshot.SnapshotV1)
}

type session struct {
	id  string
	out chan []byte
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// TickLogEntry records one tick's inputs and outputs. Inputs are complete
// enough for a replay to reproduce the digest.
type TickLogEntry struct {
	Tick     uint64                `json:"tick"`
	Report   *[]ObjectiveRec       `json:"report,omitempty"`
	Signals  []string              `json:"signals,omitempty"`
	Select   *string               `json:"select,omitempty"`
	Hover    *string               `json:"hover,omitempty"`
	Group    *GroupRec             `json:"group,omitempty"`
	Controls []protocol.ControlMsg `json:"controls,omitempty"`
	Probes   []string              `json:"probes,omitempty"`
	Buffer   string                `json:"buffer,omitempty"`
	Digest   string                `json:"digest"`
}

type ObjectiveRec struct {
	Name          string `json:"name"`
	QuestComplete bool   `json:"quest_complete"`
	Finisher      bool   `json:"finisher"`
	ObjectiveType string `json:"objective_type,omitempty"`
	Collected     int    `json:"collected"`
	Needed        int    `json:"needed"`
	Description   string `json:"description,omitempty"`
}

type GroupRec struct {
	InGroup  bool `json:"in_group"`
	IsLeader bool `json:"is_leader"`
}

type AuditEntry struct {
	Tick    uint64 `json:"tick"`
	Op      string `json:"op"`
	Entity  string `json:"entity,omitempty"`
	Code    string `json:"code,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Removed int    `json:"removed,omitempty"`
}

func New(cfg Config) *Engine {
	t := cfg.Tune
	e := &Engine{
		cfg:     cfg,
		tune:    t,
		tickDur: time.Second / time.Duration(t.TickRateHz),
		settings: Settings{
			ShowCompleted:        t.ShowCompleted,
			GroupOverride:        t.GroupOverride,
			DefaultManualTimeout: t.DefaultManualTimeout(),
		},
		entities: roster.NewAggregator(),
		builder:  macro.NewBuilder(t.BufferLimit, t.BufferSlot),
		markers:  make(map[string]marker.Marker),
		buffers:  make(map[string]string),
		sessions: make(map[string]*session),

		joinCh:    make(chan joinReq),
		leaveCh:   make(chan string),
		questsCh:  make(chan questsInput, 16),
		signalCh:  make(chan protocol.SignalMsg, 64),
		selectCh:  make(chan string, 16),
		hoverCh:   make(chan string, 16),
		groupCh:   make(chan protocol.GroupMsg, 16),
		controlCh: make(chan controlReq, 16),
		stopCh:    make(chan struct{}),
	}
	e.oracle = presence.NewOracle(presence.Config{
		PollingInterval: t.PollingInterval(),
		TTL:             t.PresenceTTL(),
		Namespace:       t.ActionNamespace,
		Action:          t.ActionName,
	}, e.emitProbe)
	e.oracle.SetEntitySource(e.entities.CandidateNames)
	e.assigner = marker.NewAssigner(markerLedger{e}, e.lookupPrioritized, t.SettleDelay())
	return e
}

func (e *Engine) SetTickLogger(l TickLogger)   { e.tickLogger = l }
func (e *Engine) SetAuditLogger(l AuditLogger) { e.auditLogger = l }

// SetSnapshotSink installs the periodic snapshot consumer. It is invoked on
// the loop goroutine every SnapshotEveryTicks ticks, so it should hand the
// value off quickly.
func (e *Engine) SetSnapshotSink(fn func(snapshot.SnapshotV1)) { e.snapshotSink = fn }

func (e *Engine) CurrentTick() uint64 { return e.tick }

// Inspect looks a tracked entity up by exact name. Only safe from the loop
// goroutine or while the engine is driven through StepOnce.
func (e *Engine) Inspect(name string) (roster.Entity, bool) {
	return e.entities.Inspect(name)
}

func (e *Engine) ShowCompleted() bool { return e.settings.ShowCompleted }

// Now is the engine's accumulated simulated time.
func (e *Engine) Now() time.Duration { return e.now }

func (e *Engine) Params() protocol.EngineParams {
	return protocol.EngineParams{
		TickRateHz:      e.tune.TickRateHz,
		PollingInterval: e.tune.PollingInterval().Seconds(),
		PresenceTTL:     e.tune.PresenceTTL().Seconds(),
		SettleDelay:     e.tune.SettleDelay().Seconds(),
		BufferLimit:     e.tune.BufferLimit,
		BufferSlot:      e.tune.BufferSlot,
		ActionNamespace: e.tune.ActionNamespace,
		DefaultTimeoutS: int(e.settings.DefaultManualTimeout / time.Second),
	}
}

// lookupPrioritized resolves a name against the prioritized entity list, the
// view the mark assigner is specified against.
func (e *Engine) lookupPrioritized(name string) (roster.Entity, bool) {
	for _, ent := range e.entities.PrioritizedEntities(e.settings.ShowCompleted) {
		if ent.Name == name {
			return ent, true
		}
	}
	return roster.Entity{}, false
}

func (e *Engine) policy() marker.Policy {
	return marker.Policy{
		InGroup:  e.group.InGroup,
		IsLeader: e.group.IsLeader,
		Override: e.settings.GroupOverride,
	}
}

// emitProbe is the oracle's side-effect point: one restricted-action attempt
// per absent candidate per polling window, forwarded to the host.
func (e *Engine) emitProbe(name string) {
	e.probesThisTick = append(e.probesThisTick, name)
	e.broadcast(protocol.ProbeMsg{
		Type:   protocol.TypeProbe,
		Tick:   e.tick,
		Entity: name,
		Action: e.tune.ActionName,
	})
}

// markerLedger adapts the engine's marker map to the assigner's Marks
// surface, forwarding each write to the host.
type markerLedger struct{ e *Engine }

func (l markerLedger) GetMarker(name string) marker.Marker {
	return l.e.markers[name]
}

func (l markerLedger) SetMarker(name string, m marker.Marker) bool {
	l.e.markers[name] = m
	l.e.broadcast(protocol.MarkMsg{
		Type:   protocol.TypeMark,
		Tick:   l.e.tick,
		Op:     protocol.MarkOpSet,
		Entity: name,
		Marker: int(m),
	})
	return true
}

func (l markerLedger) ClearMarker(name string) bool {
	delete(l.e.markers, name)
	l.e.broadcast(protocol.MarkMsg{
		Type:   protocol.TypeMark,
		Tick:   l.e.tick,
		Op:     protocol.MarkOpClear,
		Entity: name,
	})
	return true
}

// writeBuffer persists a command-buffer slot and returns the previous
// content, forwarding the write to the host.
func (e *Engine) writeBuffer(slot, text string) string {
	prev := e.buffers[slot]
	e.buffers[slot] = text
	e.broadcast(protocol.BufferMsg{
		Type: protocol.TypeBuffer,
		Tick: e.tick,
		Slot: slot,
		Text: text,
	})
	return prev
}

func (e *Engine) audit(entry AuditEntry) {
	if e.auditLogger == nil {
		return
	}
	entry.Tick = e.tick
	_ = e.auditLogger.WriteAudit(entry)
}
