// Package presence infers which named entities are within interaction range.
//
// The host exposes no direct range query. The one observable is a restricted
// action the engine is allowed to attempt but not perform: attempting it
// against an entity that exists and is in range triggers an asynchronous
// signal, and anything else is silence. The oracle probes absent candidates on
// a fixed cadence and treats each signal as a fresh sighting with a TTL.
package presence

import (
	"sort"
	"time"
)

// ProbeFunc issues one attempt of the restricted action against the named
// entity. It is a real side-effecting host call, so the oracle rate-limits it
// to one probe per absent candidate per polling window.
type ProbeFunc func(name string)

// SourceFunc returns the current candidate entity names. A single source is
// active at a time; callers composing several sources pre-merge them.
type SourceFunc func() []string

type Config struct {
	PollingInterval time.Duration
	TTL             time.Duration

	// Namespace and Action authenticate incoming signals as responses to this
	// oracle's own probes rather than some other host's.
	Namespace string
	Action    string
}

type Oracle struct {
	cfg Config

	probe  ProbeFunc
	source SourceFunc

	lastSeen map[string]time.Duration

	now      time.Duration
	acc      time.Duration
	scans    uint64
	probes   uint64
	matched  bool
}

func NewOracle(cfg Config, probe ProbeFunc) *Oracle {
	return &Oracle{
		cfg:      cfg,
		probe:    probe,
		lastSeen: make(map[string]time.Duration),
	}
}

// SetEntitySource replaces any previously registered candidate source.
func (o *Oracle) SetEntitySource(fn SourceFunc) { o.source = fn }

// Tick accumulates elapsed simulated time and runs one scan pass whenever the
// accumulated time crosses the polling interval.
func (o *Oracle) Tick(elapsed time.Duration) {
	o.now += elapsed
	o.acc += elapsed
	if o.acc < o.cfg.PollingInterval {
		return
	}
	o.acc = 0
	o.scan()
}

func (o *Oracle) scan() {
	o.scans++
	o.matched = false
	o.sweep()
	if o.source == nil {
		return
	}
	for _, name := range o.source() {
		if name == "" {
			continue
		}
		if o.Present(name) {
			// Established presence rides on TTL decay; re-probing would only
			// repeat a visible host-side interaction attempt.
			continue
		}
		if o.probe != nil {
			o.probe(name)
			o.probes++
		}
	}
}

func (o *Oracle) sweep() {
	for name, seen := range o.lastSeen {
		if o.now-seen > o.cfg.TTL {
			delete(o.lastSeen, name)
		}
	}
}

// HandleSignal records a sighting for the named entity. Signals carrying a
// foreign source identity or action name belong to some other addon's probe
// and are ignored.
func (o *Oracle) HandleSignal(source, action, name string) bool {
	if source != o.cfg.Namespace || action != o.cfg.Action {
		return false
	}
	if name == "" {
		return false
	}
	o.lastSeen[name] = o.now
	o.matched = true
	return true
}

// Present reports whether the named entity has a cache entry still inside the
// TTL window.
func (o *Oracle) Present(name string) bool {
	seen, ok := o.lastSeen[name]
	if !ok {
		return false
	}
	return o.now-seen <= o.cfg.TTL
}

// GetPresentNames returns all entities currently inside the TTL window,
// sorted by name.
func (o *Oracle) GetPresentNames() []string {
	names := make([]string, 0, len(o.lastSeen))
	for name := range o.lastSeen {
		if o.Present(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// MatchedThisWindow reports whether at least one signal landed since the last
// scan pass began.
func (o *Oracle) MatchedThisWindow() bool { return o.matched }

// Now returns the oracle's accumulated simulated time.
func (o *Oracle) Now() time.Duration { return o.now }

// Stats returns scan and probe counters for diagnostics.
func (o *Oracle) Stats() (scans, probes uint64) { return o.scans, o.probes }
