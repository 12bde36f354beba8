// Package indexdb maintains a sqlite read-model index of the engine's tick
// history, audit trail, and command-buffer writes. It is a secondary index:
// writes are queued to a single writer goroutine and dropped under
// backpressure, with the JSONL logs remaining the source of truth.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"questwatch.gg/internal/persistence/snapshot"
	"questwatch.gg/internal/sim/engine"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqBuffer
	reqSnapshot
	reqBarrier
)

type req struct {
	kind reqKind

	tick     engine.TickLogEntry
	audit    engine.AuditEntry
	buffer   bufferRow
	snapshot snapshotRow
	done     chan struct{}
}

type bufferRow struct {
	Tick uint64
	Slot string
	Text string
}

type snapshotRow struct {
	Tick    uint64
	Path    string
	Manual  int
	Buffers int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Generous buffer: a probe-heavy tick can queue several entries.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-style workload; NORMAL durability is enough for a
	// secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			probes INTEGER NOT NULL,
			signals INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			op TEXT NOT NULL,
			entity TEXT,
			code TEXT,
			removed INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_op_tick ON audits(op, tick);`,
		`CREATE TABLE IF NOT EXISTS buffer_writes (
			tick INTEGER NOT NULL,
			slot TEXT NOT NULL,
			length INTEGER NOT NULL,
			text TEXT NOT NULL,
			PRIMARY KEY (tick, slot)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			manual INTEGER NOT NULL,
			buffers INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTick(entry engine.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain authoritative.
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry engine.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
	}
	return nil
}

func (s *SQLiteIndex) RecordBufferWrite(tick uint64, slot, text string) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqBuffer, buffer: bufferRow{Tick: tick, Slot: slot, Text: text}}:
	default:
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:    snap.Header.Tick,
		Path:    path,
		Manual:  len(snap.Manual),
		Buffers: len(snap.Buffers),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

// Sync blocks until every write queued before it has been committed. Used by
// tests and shutdown paths that read the index back.
func (s *SQLiteIndex) Sync() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqBarrier, done: done}
	<-done
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,probes,signals,raw_json) VALUES(?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,op,entity,code,removed,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertBuffer, _ := s.db.Prepare(`INSERT OR REPLACE INTO buffer_writes(tick,slot,length,text) VALUES(?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,manual,buffers) VALUES(?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertAudit, insertBuffer, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqBarrier {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			if r.done != nil {
				close(r.done)
			}
			continue
		}
		switch r.kind {
		case reqTick:
			b, _ := json.Marshal(r.tick)
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(
					int64(r.tick.Tick),
					r.tick.Digest,
					len(r.tick.Probes),
					len(r.tick.Signals),
					string(b),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(
					int64(a.Tick), seq, a.Op, a.Entity, a.Code, a.Removed, string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqBuffer:
			if insertBuffer != nil {
				br := r.buffer
				if _, err := tx.Stmt(insertBuffer).Exec(
					int64(br.Tick), br.Slot, len(br.Text), br.Text,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			if insertSnapshot != nil {
				sn := r.snapshot
				if _, err := tx.Stmt(insertSnapshot).Exec(
					int64(sn.Tick), sn.Path, sn.Manual, sn.Buffers,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}

// LatestTick returns the highest indexed tick and its digest.
func (s *SQLiteIndex) LatestTick() (tick uint64, digest string, err error) {
	row := s.db.QueryRow(`SELECT tick, digest FROM ticks ORDER BY tick DESC LIMIT 1`)
	var t int64
	if err := row.Scan(&t, &digest); err != nil {
		return 0, "", err
	}
	return uint64(t), digest, nil
}

// BufferWrites returns the command-buffer write history for a slot, newest
// first, up to limit rows.
func (s *SQLiteIndex) BufferWrites(slot string, limit int) ([]engine.TickLogEntry, error) {
	rows, err := s.db.Query(`SELECT tick, text FROM buffer_writes WHERE slot=? ORDER BY tick DESC LIMIT ?`, slot, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []engine.TickLogEntry
	for rows.Next() {
		var t int64
		var text string
		if err := rows.Scan(&t, &text); err != nil {
			return nil, err
		}
		out = append(out, engine.TickLogEntry{Tick: uint64(t), Buffer: text})
	}
	return out, rows.Err()
}

// AuditCount returns how many audit rows carry the given op.
func (s *SQLiteIndex) AuditCount(op string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM audits WHERE op=?`, op).Scan(&n)
	return n, err
}
