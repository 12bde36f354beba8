package presence

import (
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		PollingInterval: 250 * time.Millisecond,
		TTL:             2 * time.Second,
		Namespace:       "QuestWatch",
		Action:          "ATTEMPT_INTERACT",
	}
}

func TestTick_NoScanBeforeInterval(t *testing.T) {
	var probed []string
	o := NewOracle(testConfig(), func(name string) { probed = append(probed, name) })
	o.SetEntitySource(func() []string { return []string{"Bob"} })

	o.Tick(100 * time.Millisecond)
	if len(probed) != 0 {
		t.Fatalf("probed before interval elapsed: %v", probed)
	}
	o.Tick(150 * time.Millisecond)
	if len(probed) != 1 || probed[0] != "Bob" {
		t.Fatalf("expected one probe for Bob, got %v", probed)
	}
}

func TestScan_ProbesOnlyAbsentCandidates(t *testing.T) {
	var probed []string
	o := NewOracle(testConfig(), func(name string) { probed = append(probed, name) })
	o.SetEntitySource(func() []string { return []string{"Alice", "Bob"} })

	o.Tick(250 * time.Millisecond)
	if len(probed) != 2 {
		t.Fatalf("expected both probed, got %v", probed)
	}

	if !o.HandleSignal("QuestWatch", "ATTEMPT_INTERACT", "Alice") {
		t.Fatalf("own signal rejected")
	}

	probed = probed[:0]
	o.Tick(250 * time.Millisecond)
	if len(probed) != 1 || probed[0] != "Bob" {
		t.Fatalf("present candidate re-probed: %v", probed)
	}
}

func TestHandleSignal_ForeignIdentityIgnored(t *testing.T) {
	o := NewOracle(testConfig(), nil)
	if o.HandleSignal("OtherAddon", "ATTEMPT_INTERACT", "Bob") {
		t.Fatalf("foreign source accepted")
	}
	if o.HandleSignal("QuestWatch", "CAST_SPELL", "Bob") {
		t.Fatalf("foreign action accepted")
	}
	if o.Present("Bob") {
		t.Fatalf("presence recorded from foreign signal")
	}
}

func TestPresence_TTLDecay(t *testing.T) {
	o := NewOracle(testConfig(), nil)
	o.HandleSignal("QuestWatch", "ATTEMPT_INTERACT", "Bob")

	// Inside the window at every quarter second up to the TTL.
	for i := 0; i < 8; i++ {
		o.Tick(250 * time.Millisecond)
		if !o.Present("Bob") {
			t.Fatalf("absent inside TTL window at step %d", i)
		}
	}
	// One more window pushes the sighting past the TTL.
	o.Tick(250 * time.Millisecond)
	if o.Present("Bob") {
		t.Fatalf("still present past TTL")
	}
	if names := o.GetPresentNames(); len(names) != 0 {
		t.Fatalf("swept entry still listed: %v", names)
	}
}

func TestGetPresentNames_Sorted(t *testing.T) {
	o := NewOracle(testConfig(), nil)
	o.HandleSignal("QuestWatch", "ATTEMPT_INTERACT", "Zed")
	o.HandleSignal("QuestWatch", "ATTEMPT_INTERACT", "Alice")
	o.HandleSignal("QuestWatch", "ATTEMPT_INTERACT", "Mira")
	got := o.GetPresentNames()
	want := []string{"Alice", "Mira", "Zed"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: got %v", got)
		}
	}
}

func TestScan_SourceReplaced(t *testing.T) {
	var probed []string
	o := NewOracle(testConfig(), func(name string) { probed = append(probed, name) })
	o.SetEntitySource(func() []string { return []string{"Old"} })
	o.SetEntitySource(func() []string { return []string{"New"} })
	o.Tick(250 * time.Millisecond)
	if len(probed) != 1 || probed[0] != "New" {
		t.Fatalf("prior source not replaced: %v", probed)
	}
}
