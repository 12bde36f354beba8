// Package marker applies at most one exclusive raid-style marker to the
// selected entity and one to the hovered entity.
package marker

import (
	"time"

	"questwatch.gg/internal/sim/engine/roster"
)

// Marker is a raid target icon id. Zero means unmarked.
type Marker int

const (
	None     Marker = 0
	Star     Marker = 1
	Circle   Marker = 2
	Diamond  Marker = 3
	Triangle Marker = 4
	Moon     Marker = 5
	Square   Marker = 6
	Cross    Marker = 7
	Skull    Marker = 8
)

// Marker roles. Turn-in contacts always get the star; combat and manual
// targets get the skull while incomplete; hover uses the moon and never
// displaces anything.
const (
	SelectedMarker = Skull
	TurnInMarker   = Star
	HoverMarker    = Moon
)

// Marks is the host's marker surface. All calls are best-effort.
type Marks interface {
	GetMarker(name string) Marker
	SetMarker(name string, m Marker) bool
	ClearMarker(name string) bool
}

// Lookup resolves a name against the current prioritized entity list.
type Lookup func(name string) (roster.Entity, bool)

// Policy is the shared-resource write gate: in a group, only the leader marks
// unless the global override is toggled on.
type Policy struct {
	InGroup  bool
	IsLeader bool
	Override bool
}

func (p Policy) CanMark() bool {
	return !p.InGroup || p.IsLeader || p.Override
}

type State int

const (
	Unmarked State = iota
	PendingClear
	PendingSet
	Marked
)

type slot struct {
	name     string
	desired  Marker
	state    State
	settleAt time.Duration
}

// Assigner tracks the selected and hovered slots independently. A pending
// clear-then-set is abandoned simply by overwriting the slot on the next
// selection change.
type Assigner struct {
	marks  Marks
	lookup Lookup
	settle time.Duration

	selected slot
	hovered  slot
}

func NewAssigner(marks Marks, lookup Lookup, settle time.Duration) *Assigner {
	return &Assigner{marks: marks, lookup: lookup, settle: settle}
}

// desiredFor returns the marker an eligible entity should carry, or None.
func desiredFor(e roster.Entity) Marker {
	if e.Class == roster.TurnInContact {
		return TurnInMarker
	}
	if e.Progress >= 100 {
		return None
	}
	return SelectedMarker
}

// SetSelected reacts to a selection change. It returns false when no marker
// was (or will be) applied: unknown entity, completed target, or a group
// member without leadership or override.
func (a *Assigner) SetSelected(name string, pol Policy, now time.Duration) bool {
	if name == a.selected.name && a.selected.state != Unmarked {
		return true
	}
	a.selected = slot{name: name}
	if name == "" {
		return false
	}
	if !pol.CanMark() {
		return false
	}
	e, ok := a.lookup(name)
	if !ok {
		return false
	}
	desired := desiredFor(e)
	if desired == None {
		return false
	}
	a.selected.desired = desired
	current := a.marks.GetMarker(name)
	if current == desired {
		// Idempotent short-circuit: no redundant writes.
		a.selected.state = Marked
		return true
	}
	a.marks.ClearMarker(name)
	a.selected.state = PendingClear
	a.selected.settleAt = now + a.settle
	return true
}

// SetHovered reacts to a hover change. The hover marker is applied only to an
// entity carrying no marker at all, and hover-end clears only the hover
// marker itself.
func (a *Assigner) SetHovered(name string, pol Policy, now time.Duration) bool {
	if name == a.hovered.name {
		return a.hovered.state == Marked
	}
	if prev := a.hovered.name; prev != "" && a.hovered.state == Marked {
		if a.marks.GetMarker(prev) == HoverMarker {
			a.marks.ClearMarker(prev)
		}
	}
	a.hovered = slot{name: name}
	if name == "" {
		return false
	}
	if !pol.CanMark() {
		return false
	}
	e, ok := a.lookup(name)
	if !ok {
		return false
	}
	if desiredFor(e) == None {
		return false
	}
	if a.marks.GetMarker(name) != None {
		return false
	}
	a.marks.SetMarker(name, HoverMarker)
	a.hovered.state = Marked
	a.hovered.desired = HoverMarker
	return true
}

// Tick advances a pending clear-then-set once the settle delay has elapsed.
// The set is issued only if the entity still exists at that point; either way
// there is no further retry.
func (a *Assigner) Tick(now time.Duration) {
	if a.selected.state != PendingClear || now < a.selected.settleAt {
		return
	}
	a.selected.state = PendingSet
	if _, ok := a.lookup(a.selected.name); !ok {
		a.selected.state = Unmarked
		return
	}
	a.marks.SetMarker(a.selected.name, a.selected.desired)
	a.selected.state = Marked
}

// SelectedState exposes the selected slot for diagnostics and tests.
func (a *Assigner) SelectedState() (name string, st State) {
	return a.selected.name, a.selected.state
}

// HoveredState exposes the hovered slot for diagnostics and tests.
func (a *Assigner) HoveredState() (name string, st State) {
	return a.hovered.name, a.hovered.state
}
