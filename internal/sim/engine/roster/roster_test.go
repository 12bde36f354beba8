package roster

import (
	"testing"
	"time"
)

func TestRefresh_TurnInPrecedenceOnDuplicateName(t *testing.T) {
	a := NewAggregator()
	a.Refresh([]Objective{
		{Name: "Greta", QuestComplete: false, Collected: 2, Needed: 8, Description: "Greta defeated"},
		{Name: "Greta", QuestComplete: true, Finisher: true, Description: "Speak with Greta"},
	})
	all := a.AllEntities()
	if len(all) != 1 {
		t.Fatalf("expected one merged record, got %d", len(all))
	}
	if all[0].Class != TurnInContact {
		t.Fatalf("expected turn-in precedence, got %v", all[0].Class)
	}
}

func TestRefresh_FirstSeenWinsForCombatDuplicates(t *testing.T) {
	a := NewAggregator()
	a.Refresh([]Objective{
		{Name: "Wolf", Collected: 3, Needed: 10, Description: "Wolves in the glade"},
		{Name: "Wolf", Collected: 9, Needed: 10, Description: "Wolves by the river"},
	})
	e, ok := a.Inspect("Wolf")
	if !ok {
		t.Fatalf("missing record")
	}
	if e.Progress != 30 || e.Source != "Wolves in the glade" {
		t.Fatalf("first-seen record lost: %+v", e)
	}
}

func TestRefresh_PreservesPresenceAcrossRebuild(t *testing.T) {
	a := NewAggregator()
	a.Refresh([]Objective{{Name: "Bob", Collected: 4, Needed: 10}})
	a.StampPresence(func(name string) bool { return name == "Bob" }, time.Second)

	a.Refresh([]Objective{{Name: "Bob", Collected: 5, Needed: 10}})
	e, _ := a.Inspect("Bob")
	if !e.Present || e.PresentSince != time.Second {
		t.Fatalf("presence lost across refresh: %+v", e)
	}
	if e.Progress != 50 {
		t.Fatalf("progress not recomputed: %+v", e)
	}
}

func TestRefresh_DropsUnreportedNames(t *testing.T) {
	a := NewAggregator()
	a.Refresh([]Objective{{Name: "Bob", Collected: 1, Needed: 2}})
	a.Refresh([]Objective{{Name: "Alice", QuestComplete: true, Finisher: true}})
	if _, ok := a.Inspect("Bob"); ok {
		t.Fatalf("stale objective record survived")
	}
	if _, ok := a.Inspect("Alice"); !ok {
		t.Fatalf("fresh record missing")
	}
}

func TestRefresh_NilReportYieldsEmptyObjectiveSet(t *testing.T) {
	a := NewAggregator()
	a.Refresh([]Objective{{Name: "Bob", Collected: 1, Needed: 2}})
	a.AddManual("Rare Spawn", time.Minute, 0)
	a.Refresh(nil)
	all := a.AllEntities()
	if len(all) != 1 || all[0].Class != ManualTarget {
		t.Fatalf("manual entity should survive provider outage: %+v", all)
	}
}

func TestAddManual_EmptyNameNoOp(t *testing.T) {
	a := NewAggregator()
	if a.AddManual("", time.Minute, 0) {
		t.Fatalf("empty name accepted")
	}
	if _, manual := a.Counts(); manual != 0 {
		t.Fatalf("record created for empty name")
	}
}

func TestManualExpiry_Boundary(t *testing.T) {
	a := NewAggregator()
	a.AddManual("Rare Spawn", 60*time.Second, 0)

	if n := a.ExpireManual(59 * time.Second); n != 0 {
		t.Fatalf("expired early")
	}
	if _, ok := a.Inspect("Rare Spawn"); !ok {
		t.Fatalf("absent before timeout")
	}
	if n := a.ExpireManual(60 * time.Second); n != 1 {
		t.Fatalf("expected expiry at timeout, removed=%d", n)
	}
	if _, ok := a.Inspect("Rare Spawn"); ok {
		t.Fatalf("present past timeout")
	}
}

func TestAddManual_OverwriteResetsClock(t *testing.T) {
	a := NewAggregator()
	a.AddManual("Rare Spawn", 60*time.Second, 0)
	a.AddManual("Rare Spawn", 60*time.Second, 30*time.Second)
	if n := a.ExpireManual(80 * time.Second); n != 0 {
		t.Fatalf("overwrite did not reset the expiry clock")
	}
	if n := a.ExpireManual(90 * time.Second); n != 1 {
		t.Fatalf("expected expiry against the new clock")
	}
}

func TestClearManual(t *testing.T) {
	a := NewAggregator()
	a.AddManual("A", time.Minute, 0)
	a.AddManual("B", time.Minute, 0)
	if n := a.ClearManual(); n != 2 {
		t.Fatalf("expected 2 cleared, got %d", n)
	}
	if _, manual := a.Counts(); manual != 0 {
		t.Fatalf("records survived clear")
	}
}

func TestAllEntities_ObjectiveShadowsManual(t *testing.T) {
	a := NewAggregator()
	a.AddManual("Bob", time.Minute, 0)
	a.Refresh([]Objective{{Name: "Bob", Collected: 4, Needed: 10}})
	all := a.AllEntities()
	if len(all) != 1 || all[0].Class != CombatTarget {
		t.Fatalf("expected objective record to shadow manual: %+v", all)
	}
}

func TestPrioritizedEntities_OrderAndCompletionFilter(t *testing.T) {
	a := NewAggregator()
	a.Refresh([]Objective{
		{Name: "Bob", Collected: 4, Needed: 10},
		{Name: "Alice", QuestComplete: true, Finisher: true},
		{Name: "Carl", Collected: 10, Needed: 10},
		{Name: "Zoe", QuestComplete: true, Finisher: true},
	})

	got := a.PrioritizedEntities(false)
	want := []string{"Alice", "Zoe", "Bob"}
	if len(got) != len(want) {
		t.Fatalf("got %d entities: %+v", len(got), got)
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("order mismatch at %d: got %+v", i, got)
		}
	}

	got = a.PrioritizedEntities(true)
	if len(got) != 4 || got[3].Name != "Carl" {
		t.Fatalf("showCompleted should reinstate Carl: %+v", got)
	}
}

func TestPresentEntities_ExternalLookup(t *testing.T) {
	a := NewAggregator()
	a.Refresh([]Objective{
		{Name: "Bob", Collected: 4, Needed: 10},
		{Name: "Alice", QuestComplete: true, Finisher: true},
	})
	present := a.PresentEntities(func(name string) bool { return name == "Bob" })
	if len(present) != 1 || present[0].Name != "Bob" {
		t.Fatalf("got %+v", present)
	}
}

func TestCandidateNames_MergedAndSorted(t *testing.T) {
	a := NewAggregator()
	a.Refresh([]Objective{{Name: "Zoe", Collected: 0, Needed: 1}})
	a.AddManual("Alpha", time.Minute, 0)
	a.AddManual("Zoe", time.Minute, 0)
	names := a.CandidateNames()
	if len(names) != 2 || names[0] != "Alpha" || names[1] != "Zoe" {
		t.Fatalf("got %v", names)
	}
}
