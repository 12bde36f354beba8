package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"sort"
)

// stateDigest hashes the engine state sections in a fixed order. Replaying a
// recorded tick log through StepOnce must reproduce these digests exactly.
func (e *Engine) stateDigest() string {
	h := sha256.New()
	var tmp [8]byte

	e.digestHeader(h, &tmp)
	e.digestEntities(h, &tmp)
	e.digestPresence(h, &tmp)
	e.digestMarkers(h, &tmp)
	e.digestBuffers(h)
	e.digestSettings(h, &tmp)

	return hex.EncodeToString(h.Sum(nil))
}

func (e *Engine) digestHeader(h io.Writer, tmp *[8]byte) {
	digestWriteU64(h, tmp, e.tick)
	digestWriteU64(h, tmp, uint64(e.now))
	digestString(h, e.selected)
	digestString(h, e.hovered)
	digestString(h, e.lastSelected)
}

func (e *Engine) digestEntities(h io.Writer, tmp *[8]byte) {
	for _, ent := range e.entities.AllEntities() {
		digestString(h, ent.Name)
		digestWriteU64(h, tmp, uint64(ent.Class))
		digestWriteU64(h, tmp, uint64(ent.Progress))
		h.Write([]byte{boolByte(ent.Present)})
		digestWriteU64(h, tmp, uint64(ent.AddedAt))
		digestWriteU64(h, tmp, uint64(ent.Timeout))
	}
}

func (e *Engine) digestPresence(h io.Writer, tmp *[8]byte) {
	for _, name := range e.oracle.GetPresentNames() {
		digestString(h, name)
	}
}

func (e *Engine) digestMarkers(h io.Writer, tmp *[8]byte) {
	names := make([]string, 0, len(e.markers))
	for name := range e.markers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		digestString(h, name)
		digestWriteU64(h, tmp, uint64(e.markers[name]))
	}
}

func (e *Engine) digestBuffers(h io.Writer) {
	slots := make([]string, 0, len(e.buffers))
	for slot := range e.buffers {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	for _, slot := range slots {
		digestString(h, slot)
		digestString(h, e.buffers[slot])
	}
}

func (e *Engine) digestSettings(h io.Writer, tmp *[8]byte) {
	h.Write([]byte{boolByte(e.settings.ShowCompleted), boolByte(e.settings.GroupOverride)})
	digestWriteU64(h, tmp, uint64(e.settings.DefaultManualTimeout))
	h.Write([]byte{boolByte(e.group.InGroup), boolByte(e.group.IsLeader)})
}

func digestWriteU64(h io.Writer, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestString(h io.Writer, s string) {
	var tmp [8]byte
	digestWriteU64(h, &tmp, uint64(len(s)))
	h.Write([]byte(s))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
