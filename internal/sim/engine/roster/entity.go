package roster

import "time"

// Classification tags the single displayed record an entity name resolves to.
type Classification int

const (
	// TurnInContact receives a quest reward delivery; it outranks every other
	// classification carrying the same name.
	TurnInContact Classification = iota
	// CombatTarget is an objective-derived kill/collect target with progress.
	CombatTarget
	// ManualTarget is user-added, self-expiring, independent of quest data.
	ManualTarget
)

func (c Classification) String() string {
	switch c {
	case TurnInContact:
		return "TURN_IN"
	case CombatTarget:
		return "COMBAT"
	case ManualTarget:
		return "MANUAL"
	}
	return "UNKNOWN"
}

// Entity is the central record. Progress is meaningful only for CombatTarget
// and ManualTarget; AddedAt/Timeout only for ManualTarget. Present is written
// solely from the presence oracle's cache each tick.
type Entity struct {
	Name     string
	Class    Classification
	Progress int
	Source   string

	Present      bool
	PresentSince time.Duration

	AddedAt time.Duration
	Timeout time.Duration
}

// ManualRemaining returns the time left before a manual entity expires.
func (e Entity) ManualRemaining(now time.Duration) time.Duration {
	if e.Class != ManualTarget {
		return 0
	}
	left := e.AddedAt + e.Timeout - now
	if left < 0 {
		return 0
	}
	return left
}

// Objective is one quest-data provider tuple, as delivered per refresh.
type Objective struct {
	Name          string
	QuestComplete bool
	Finisher      bool
	ObjectiveType string
	Collected     int
	Needed        int
	Description   string
}
