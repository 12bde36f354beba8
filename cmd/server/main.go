package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"questwatch.gg/internal/persistence/indexdb"
	persistlog "questwatch.gg/internal/persistence/log"
	"questwatch.gg/internal/persistence/snapshot"
	"questwatch.gg/internal/sim/engine"
	"questwatch.gg/internal/sim/tuning"
	"questwatch.gg/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		engineID   = flag.String("engine", "engine_1", "engine id")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (tick/audit/buffer records)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Default()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	engineDir := filepath.Join(*dataDir, "engines", *engineID)
	_ = os.MkdirAll(filepath.Join(engineDir, "snapshots"), 0o755)

	e := engine.New(engine.Config{ID: *engineID, Tune: tune})

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(engineDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.EngineID != "" && snap.Header.EngineID != *engineID {
			logger.Fatalf("snapshot engine id mismatch: flag=%s snap=%s", *engineID, snap.Header.EngineID)
		}
		e.Restore(snap)
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), snap.Header.Tick)
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(engineDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index backend: %v", err)
		}
		defer idx.Close()
	}

	tickLog := persistlog.NewTickLogger(engineDir)
	defer tickLog.Close()
	auditLog := persistlog.NewAuditLogger(engineDir)
	defer auditLog.Close()
	e.SetTickLogger(&tickSink{file: tickLog, idx: idx, slot: tune.BufferSlot})
	e.SetAuditLogger(&auditSink{file: auditLog, idx: idx})

	// Snapshots are produced on the loop goroutine but written off it.
	snapCh := make(chan snapshot.SnapshotV1, 4)
	go snapshotWriter(engineDir, snapCh, idx, logger)
	e.SetSnapshotSink(func(snap snapshot.SnapshotV1) {
		select {
		case snapCh <- snap:
		default:
			logger.Printf("snapshot writer busy; skipping tick=%d", snap.Header.Tick)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := e.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("engine loop: %v", err)
		}
	}()

	srv := ws.NewServer(e, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", srv.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, "ok tick=%d\n", e.CurrentTick())
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)

	httpSrv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening addr=%s engine=%s tick_rate=%dhz", *addr, *engineID, tune.TickRateHz)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Printf("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = httpSrv.Shutdown(shutCtx)
	cancel()

	// Final snapshot so a restart resumes where we stopped.
	snap := e.Snapshot()
	path := snapshotPath(engineDir, snap.Header.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		logger.Printf("final snapshot: %v", err)
	} else {
		logger.Printf("final snapshot tick=%d path=%s", snap.Header.Tick, filepath.Base(path))
	}
	if idx != nil {
		idx.RecordSnapshot(path, snap)
		idx.Sync()
	}
}

// tickSink fans one tick entry out to the JSONL log and the sqlite index.
type tickSink struct {
	file *persistlog.TickLogger
	idx  *indexdb.SQLiteIndex
	slot string
}

func (s *tickSink) WriteTick(entry engine.TickLogEntry) error {
	err := s.file.WriteTick(entry)
	if s.idx != nil {
		_ = s.idx.WriteTick(entry)
		if entry.Buffer != "" {
			s.idx.RecordBufferWrite(entry.Tick, s.slot, entry.Buffer)
		}
	}
	return err
}

type auditSink struct {
	file *persistlog.AuditLogger
	idx  *indexdb.SQLiteIndex
}

func (s *auditSink) WriteAudit(entry engine.AuditEntry) error {
	err := s.file.WriteAudit(entry)
	if s.idx != nil {
		_ = s.idx.WriteAudit(entry)
	}
	return err
}

func snapshotWriter(engineDir string, in <-chan snapshot.SnapshotV1, idx *indexdb.SQLiteIndex, logger *log.Logger) {
	for snap := range in {
		path := snapshotPath(engineDir, snap.Header.Tick)
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			logger.Printf("write snapshot: %v", err)
			continue
		}
		if idx != nil {
			idx.RecordSnapshot(path, snap)
		}
		logger.Printf("snapshot tick=%d path=%s", snap.Header.Tick, filepath.Base(path))
	}
}

func snapshotPath(engineDir string, tick uint64) string {
	return filepath.Join(engineDir, "snapshots", fmt.Sprintf("snap_%012d.bin.zst", tick))
}

// latestSnapshot returns the newest snapshot file in the engine dir, or empty.
// Filenames embed the zero-padded tick, so lexicographic order is tick order.
func latestSnapshot(engineDir string) string {
	entries, err := os.ReadDir(filepath.Join(engineDir, "snapshots"))
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasPrefix(ent.Name(), "snap_") {
			continue
		}
		names = append(names, ent.Name())
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(engineDir, "snapshots", names[len(names)-1])
}
