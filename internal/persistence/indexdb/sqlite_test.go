package indexdb

import (
	"path/filepath"
	"testing"

	"questwatch.gg/internal/sim/engine"
)

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWriteTick_ReadBack(t *testing.T) {
	s := openTestIndex(t)
	_ = s.WriteTick(engine.TickLogEntry{Tick: 1, Digest: "d1", Probes: []string{"Bob"}})
	_ = s.WriteTick(engine.TickLogEntry{Tick: 2, Digest: "d2"})
	s.Sync()

	tick, digest, err := s.LatestTick()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if tick != 2 || digest != "d2" {
		t.Fatalf("got tick=%d digest=%q", tick, digest)
	}
}

func TestBufferWrites_ReadBack(t *testing.T) {
	s := openTestIndex(t)
	s.RecordBufferWrite(3, "QuestWatchTargets", "/cleartarget [dead]\n/targetexact Bob")
	s.RecordBufferWrite(9, "QuestWatchTargets", "# no targets in range")
	s.Sync()

	rows, err := s.BufferWrites("QuestWatchTargets", 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 || rows[0].Tick != 9 {
		t.Fatalf("got %+v", rows)
	}
}

func TestAudits_SequencedWithinTick(t *testing.T) {
	s := openTestIndex(t)
	_ = s.WriteAudit(engine.AuditEntry{Tick: 5, Op: "add_manual", Entity: "Rare Spawn"})
	_ = s.WriteAudit(engine.AuditEntry{Tick: 5, Op: "buffer_write"})
	_ = s.WriteAudit(engine.AuditEntry{Tick: 6, Op: "expire_manual", Removed: 1})
	s.Sync()

	n, err := s.AuditCount("add_manual")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("add_manual count=%d", n)
	}
	n, _ = s.AuditCount("expire_manual")
	if n != 1 {
		t.Fatalf("expire_manual count=%d", n)
	}
}
