package engine

import (
	"time"

	"questwatch.gg/internal/persistence/snapshot"
)

const snapshotVersion = 1

// Snapshot captures the durable engine state. Presence and pending marker
// transitions are excluded; both are rebuilt from live host traffic.
func (e *Engine) Snapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:  snapshotVersion,
			EngineID: e.cfg.ID,
			Tick:     e.tick,
		},
		NowMs:           e.now.Milliseconds(),
		ShowCompleted:   e.settings.ShowCompleted,
		GroupOverride:   e.settings.GroupOverride,
		DefaultTimeoutS: int(e.settings.DefaultManualTimeout / time.Second),
		LastSelected:    e.lastSelected,
	}
	for _, ent := range e.entities.ManualEntities() {
		snap.Manual = append(snap.Manual, snapshot.ManualV1{
			Name:       ent.Name,
			TimeoutS:   int(ent.Timeout / time.Second),
			RemainingS: int(ent.ManualRemaining(e.now) / time.Second),
		})
	}
	if len(e.buffers) > 0 {
		snap.Buffers = make(map[string]string, len(e.buffers))
		for slot, text := range e.buffers {
			snap.Buffers[slot] = text
		}
	}
	return snap
}

// Restore applies a snapshot onto a fresh engine. Must run before the loop
// starts. The tick counter and clock continue from the snapshot so tick
// numbering stays monotonic across restarts; manual entities are re-armed
// with their remaining lifetime.
func (e *Engine) Restore(snap snapshot.SnapshotV1) {
	e.tick = snap.Header.Tick
	e.now = time.Duration(snap.NowMs) * time.Millisecond
	e.settings.ShowCompleted = snap.ShowCompleted
	e.settings.GroupOverride = snap.GroupOverride
	if snap.DefaultTimeoutS > 0 {
		e.settings.DefaultManualTimeout = time.Duration(snap.DefaultTimeoutS) * time.Second
	}
	e.lastSelected = snap.LastSelected
	for _, m := range snap.Manual {
		if m.RemainingS <= 0 {
			continue
		}
		e.entities.AddManual(m.Name, time.Duration(m.RemainingS)*time.Second, e.now)
	}
	for slot, text := range snap.Buffers {
		e.buffers[slot] = text
	}
	if text, ok := snap.Buffers[e.tune.BufferSlot]; ok {
		e.builder.Seed(text)
	}
}
