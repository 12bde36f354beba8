// Package macro serializes the prioritized present entities into one bounded
// command buffer, writing it out only when the content changes.
package macro

import (
	"strings"

	"questwatch.gg/internal/sim/engine/roster"
)

const (
	clearLine       = "/cleartarget [dead]"
	targetPrefix    = "/targetexact "
	placeholderLine = "# no targets in range"
)

// TargetLine is the single-entity action line, shared between the persistent
// buffer and one-off command execution.
func TargetLine(name string) string { return targetPrefix + name }

// WriteFunc persists the buffer to a named slot and returns the previous
// content of that slot.
type WriteFunc func(slot, text string) (previous string)

// Builder assembles the length-bounded target macro. The previous build is
// remembered so an unchanged buffer costs zero writes.
type Builder struct {
	limit int
	slot  string

	last      string
	haveBuilt bool
}

func NewBuilder(limit int, slot string) *Builder {
	return &Builder{limit: limit, slot: slot}
}

// Build assembles the buffer from present entities in prioritized order and
// writes it through write only on a content change. lastSelected, when still
// present and eligible, leads the target list. Returns the buffer text and
// whether a write happened.
func (b *Builder) Build(present []roster.Entity, lastSelected string, write WriteFunc) (text string, wrote bool) {
	text = assemble(present, lastSelected, b.limit)
	if b.haveBuilt && text == b.last {
		return text, false
	}
	b.last = text
	b.haveBuilt = true
	if write != nil {
		write(b.slot, text)
	}
	return text, true
}

// Last returns the most recently built buffer.
func (b *Builder) Last() (string, bool) { return b.last, b.haveBuilt }

// Reset forgets the previous build, forcing the next Build to write.
func (b *Builder) Reset() { b.last, b.haveBuilt = "", false }

// Seed primes the change detector with previously persisted content, so a
// resume does not rewrite an identical buffer.
func (b *Builder) Seed(text string) { b.last, b.haveBuilt = text, true }

func assemble(present []roster.Entity, lastSelected string, limit int) string {
	var sb strings.Builder
	sb.WriteString(clearLine)

	// fits accounts for the separator before deciding; the first candidate
	// that does not fit terminates assembly, keeping truncation
	// order-dependent and deterministic.
	appendLine := func(line string) bool {
		if sb.Len()+1+len(line) > limit {
			return false
		}
		sb.WriteByte('\n')
		sb.WriteString(line)
		return true
	}

	combat := 0
	appendTarget := func(e roster.Entity) bool {
		if !appendLine(targetPrefix + e.Name) {
			return false
		}
		combat++
		return true
	}

	// Combat/manual lines first, last-selected leading.
	truncated := false
	if lastSelected != "" {
		for _, e := range present {
			if e.Name != lastSelected {
				continue
			}
			if e.Class != roster.TurnInContact && e.Progress < 100 {
				truncated = !appendTarget(e)
			}
			break
		}
	}
	if !truncated {
		for _, e := range present {
			if e.Class == roster.TurnInContact || e.Progress >= 100 {
				continue
			}
			if e.Name == lastSelected {
				continue
			}
			if !appendTarget(e) {
				break
			}
		}
	}

	// Turn-in contacts are a pure fallback, never mixed with combat lines.
	if combat == 0 {
		for _, e := range present {
			if e.Class != roster.TurnInContact {
				continue
			}
			if !appendLine(targetPrefix + e.Name) {
				break
			}
		}
	}

	out := sb.String()
	if out == clearLine {
		return placeholderLine
	}
	return out
}
