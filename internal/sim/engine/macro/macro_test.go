package macro

import (
	"strings"
	"testing"

	"questwatch.gg/internal/sim/engine/roster"
)

func combat(name string, progress int) roster.Entity {
	return roster.Entity{Name: name, Class: roster.CombatTarget, Progress: progress, Present: true}
}

func turnin(name string) roster.Entity {
	return roster.Entity{Name: name, Class: roster.TurnInContact, Present: true}
}

type slotStore struct {
	writes int
	text   string
}

func (s *slotStore) write(slot, text string) string {
	prev := s.text
	s.text = text
	s.writes++
	return prev
}

func TestBuild_CombatBeforeTurnInFallback(t *testing.T) {
	b := NewBuilder(255, "QuestWatchTargets")
	store := &slotStore{}

	text, wrote := b.Build([]roster.Entity{turnin("Alice"), combat("Bob", 40)}, "", store.write)
	if !wrote {
		t.Fatalf("first build should write")
	}
	want := "/cleartarget [dead]\n/targetexact Bob"
	if text != want {
		t.Fatalf("got %q want %q", text, want)
	}
}

func TestBuild_TurnInPureFallback(t *testing.T) {
	b := NewBuilder(255, "QuestWatchTargets")
	text, _ := b.Build([]roster.Entity{turnin("Alice"), combat("Carl", 100)}, "", nil)
	want := "/cleartarget [dead]\n/targetexact Alice"
	if text != want {
		t.Fatalf("got %q", text)
	}
}

func TestBuild_LastSelectedLeads(t *testing.T) {
	b := NewBuilder(255, "QuestWatchTargets")
	text, _ := b.Build([]roster.Entity{combat("Anna", 10), combat("Zed", 20)}, "Zed", nil)
	want := "/cleartarget [dead]\n/targetexact Zed\n/targetexact Anna"
	if text != want {
		t.Fatalf("got %q", text)
	}
}

func TestBuild_PlaceholderWhenNothingFits(t *testing.T) {
	b := NewBuilder(255, "QuestWatchTargets")
	text, _ := b.Build(nil, "", nil)
	if text != "# no targets in range" {
		t.Fatalf("got %q", text)
	}
	text, _ = b.Build([]roster.Entity{combat("Carl", 100)}, "", nil)
	if text != "# no targets in range" {
		t.Fatalf("completed-only roster should yield placeholder, got %q", text)
	}
}

func TestBuild_WriteOnlyOnChange(t *testing.T) {
	b := NewBuilder(255, "QuestWatchTargets")
	store := &slotStore{}
	entities := []roster.Entity{combat("Bob", 40)}

	if _, wrote := b.Build(entities, "", store.write); !wrote {
		t.Fatalf("first build should write")
	}
	if _, wrote := b.Build(entities, "", store.write); wrote {
		t.Fatalf("unchanged build should not write")
	}
	if store.writes != 1 {
		t.Fatalf("writes=%d", store.writes)
	}

	entities = append(entities, combat("Anna", 10))
	if _, wrote := b.Build(entities, "", store.write); !wrote {
		t.Fatalf("changed build should write")
	}
	if store.writes != 2 {
		t.Fatalf("writes=%d", store.writes)
	}
}

func TestBuild_LengthBoundAtLineBoundary(t *testing.T) {
	b := NewBuilder(60, "QuestWatchTargets")
	entities := []roster.Entity{
		combat("Aaaaaaaaaa", 10),
		combat("Bbbbbbbbbb", 10),
		combat("Cccccccccc", 10),
	}
	text, _ := b.Build(entities, "", nil)
	if len(text) > 60 {
		t.Fatalf("bound exceeded: %d", len(text))
	}
	for _, ln := range strings.Split(text, "\n") {
		if ln != "/cleartarget [dead]" && !strings.HasPrefix(ln, "/targetexact ") {
			t.Fatalf("partial line emitted: %q", ln)
		}
		if strings.HasPrefix(ln, "/targetexact ") && len(ln) != len("/targetexact Aaaaaaaaaa") {
			t.Fatalf("truncated name: %q", ln)
		}
	}
	// 19 + 1 + 23 = 43 fits; the next 24 bytes would overflow 60.
	if got := strings.Count(text, "/targetexact"); got != 1 {
		t.Fatalf("expected exactly one target line, got %d in %q", got, text)
	}
}

func TestBuild_TruncationIsOrderDependent(t *testing.T) {
	// The long name blocks assembly even though the short one after it would
	// fit; truncation never skips ahead.
	b := NewBuilder(60, "QuestWatchTargets")
	entities := []roster.Entity{
		combat("Aaaaaaaaaa", 10),
		combat("Bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", 10),
		combat("Cc", 10),
	}
	text, _ := b.Build(entities, "", nil)
	if strings.Contains(text, "Cc") {
		t.Fatalf("assembly skipped ahead past a non-fitting line: %q", text)
	}
}
