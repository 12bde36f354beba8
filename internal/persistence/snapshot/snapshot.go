// Package snapshot persists the durable slice of engine state: manual
// entities, runtime settings, and the last written command buffers. Presence
// is deliberately absent; it decays in seconds and is recomputed from live
// probes after a restart.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version  int    `json:"version"`
	EngineID string `json:"engine_id"`
	Tick     uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	NowMs int64 `json:"now_ms"`

	ShowCompleted   bool `json:"show_completed"`
	GroupOverride   bool `json:"group_override"`
	DefaultTimeoutS int  `json:"default_manual_timeout_s"`

	Manual []ManualV1 `json:"manual,omitempty"`

	Buffers      map[string]string `json:"buffers,omitempty"`
	LastSelected string            `json:"last_selected,omitempty"`
}

// ManualV1 carries the remaining lifetime rather than the original add
// timestamp, so a resume re-arms the expiry against the fresh clock.
type ManualV1 struct {
	Name       string `json:"name"`
	TimeoutS   int    `json:"timeout_s"`
	RemainingS int    `json:"remaining_s"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	// Human-greppable JSON header line, gob body.
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	_, _ = br.ReadBytes('\n')
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
