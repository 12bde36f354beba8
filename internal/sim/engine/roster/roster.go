// Package roster merges objective-derived and user-added entities into one
// deduplicated, prioritized view.
package roster

import (
	"sort"
	"time"
)

// Aggregator owns the merged entity set. Objective records are rebuilt in
// place from each provider report; manual records live until their individual
// timeout or an explicit clear.
type Aggregator struct {
	objective map[string]*Entity
	manual    map[string]*Entity
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		objective: make(map[string]*Entity),
		manual:    make(map[string]*Entity),
	}
}

// Refresh rebuilds the objective-derived subset from one provider report.
// Records are reused by name so presence stamps survive the rebuild; names no
// longer reported are dropped. A nil report (provider unavailable) yields an
// empty objective set and is not an error.
func (a *Aggregator) Refresh(objectives []Objective) {
	next := make(map[string]*Entity, len(objectives))
	for _, obj := range objectives {
		if obj.Name == "" {
			continue
		}
		class := CombatTarget
		if obj.QuestComplete && obj.Finisher {
			class = TurnInContact
		}
		if existing, ok := next[obj.Name]; ok {
			// Same name from several quests: turn-in wins, otherwise the
			// first-seen record stands.
			if class == TurnInContact && existing.Class != TurnInContact {
				existing.Class = TurnInContact
				existing.Progress = 0
				existing.Source = obj.Description
			}
			continue
		}
		e, ok := a.objective[obj.Name]
		if !ok {
			e = &Entity{Name: obj.Name}
		}
		e.Class = class
		e.Source = obj.Description
		if class == TurnInContact {
			e.Progress = 0
		} else {
			e.Progress = progressOf(obj.Collected, obj.Needed)
		}
		next[obj.Name] = e
	}
	a.objective = next
}

func progressOf(collected, needed int) int {
	if needed <= 0 {
		return 0
	}
	p := collected * 100 / needed
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// AddManual inserts or overwrites a manual record expiring timeout after now.
// An empty name is a silent no-op.
func (a *Aggregator) AddManual(name string, timeout time.Duration, now time.Duration) bool {
	if name == "" {
		return false
	}
	e, ok := a.manual[name]
	if !ok {
		e = &Entity{Name: name}
		a.manual[name] = e
	}
	e.Class = ManualTarget
	e.AddedAt = now
	e.Timeout = timeout
	return true
}

// ExpireManual removes manual records whose age has reached their timeout and
// returns how many were removed.
func (a *Aggregator) ExpireManual(now time.Duration) int {
	removed := 0
	for name, e := range a.manual {
		if now >= e.AddedAt+e.Timeout {
			delete(a.manual, name)
			removed++
		}
	}
	return removed
}

// ClearManual removes all manual records and returns how many there were.
func (a *Aggregator) ClearManual() int {
	n := len(a.manual)
	a.manual = make(map[string]*Entity)
	return n
}

// StampPresence writes the presence flag onto every record from the oracle's
// cache. Nothing else writes Present.
func (a *Aggregator) StampPresence(isPresent func(name string) bool, now time.Duration) {
	stamp := func(e *Entity) {
		was := e.Present
		e.Present = isPresent(e.Name)
		if e.Present && !was {
			e.PresentSince = now
		}
	}
	for _, e := range a.objective {
		stamp(e)
	}
	for _, e := range a.manual {
		stamp(e)
	}
}

// CandidateNames returns every tracked name, deduplicated and sorted. This is
// the oracle's probe source.
func (a *Aggregator) CandidateNames() []string {
	seen := make(map[string]struct{}, len(a.objective)+len(a.manual))
	names := make([]string, 0, len(a.objective)+len(a.manual))
	for name := range a.objective {
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for name := range a.manual {
		if _, ok := seen[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// AllEntities returns one record per distinct name: objective records first,
// manual records only for names the provider does not cover. Sorted by name
// with classification as the tie-break.
func (a *Aggregator) AllEntities() []Entity {
	out := make([]Entity, 0, len(a.objective)+len(a.manual))
	for _, e := range a.objective {
		out = append(out, *e)
	}
	for name, e := range a.manual {
		if _, ok := a.objective[name]; ok {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Class < out[j].Class
	})
	return out
}

// PresentEntities filters AllEntities through an external presence lookup.
func (a *Aggregator) PresentEntities(isPresent func(name string) bool) []Entity {
	all := a.AllEntities()
	out := all[:0]
	for _, e := range all {
		if isPresent(e.Name) {
			out = append(out, e)
		}
	}
	return out
}

// PrioritizedEntities returns turn-in entities first, then combat and manual
// entities, each group ascending by name. Completed combat/manual entities
// are excluded unless showCompleted is set.
func (a *Aggregator) PrioritizedEntities(showCompleted bool) []Entity {
	all := a.AllEntities()
	turnins := make([]Entity, 0, len(all))
	rest := make([]Entity, 0, len(all))
	for _, e := range all {
		if e.Class == TurnInContact {
			turnins = append(turnins, e)
			continue
		}
		if e.Progress >= 100 && !showCompleted {
			continue
		}
		rest = append(rest, e)
	}
	// AllEntities is already name-sorted; concatenation keeps each group
	// ordered.
	return append(turnins, rest...)
}

// ManualEntities returns the manual records sorted by name, for persistence
// and diagnostics.
func (a *Aggregator) ManualEntities() []Entity {
	out := make([]Entity, 0, len(a.manual))
	for _, e := range a.manual {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Inspect looks up the merged record for a name.
func (a *Aggregator) Inspect(name string) (Entity, bool) {
	if e, ok := a.objective[name]; ok {
		return *e, true
	}
	if e, ok := a.manual[name]; ok {
		return *e, true
	}
	return Entity{}, false
}

// Counts reports the objective and manual record counts.
func (a *Aggregator) Counts() (objective, manual int) {
	return len(a.objective), len(a.manual)
}
