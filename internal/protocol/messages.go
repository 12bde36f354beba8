package protocol

// HELLO (host -> engine)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	HostName        string `json:"host_name"`
	// AddonID is the identity the host stamps on restricted-action signals.
	// The engine ignores signals carrying any other identity.
	AddonID     string `json:"addon_id"`
	ResumeToken string `json:"resume_token,omitempty"`
}

// WELCOME (engine -> host)
type WelcomeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	SessionID       string       `json:"session_id"`
	ResumeToken     string       `json:"resume_token"`
	EngineParams    EngineParams `json:"engine_params"`
}

type EngineParams struct {
	TickRateHz       int     `json:"tick_rate_hz"`
	PollingInterval  float64 `json:"polling_interval_s"`
	PresenceTTL      float64 `json:"presence_ttl_s"`
	SettleDelay      float64 `json:"settle_delay_s"`
	BufferLimit      int     `json:"buffer_limit"`
	BufferSlot       string  `json:"buffer_slot"`
	ActionNamespace  string  `json:"action_namespace"`
	DefaultTimeoutS  int     `json:"default_manual_timeout_s"`
}

// QUESTS (host -> engine): one full quest-data report per message. The engine
// keeps only the most recent report; a host that stops sending reports leaves
// the engine running on manual entities alone.
type QuestsMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version,omitempty"`
	Objectives      []ObjectiveWire `json:"objectives"`
}

type ObjectiveWire struct {
	Name          string `json:"name"`
	QuestComplete bool   `json:"quest_complete"`
	Finisher      bool   `json:"finisher"`
	ObjectiveType string `json:"objective_type,omitempty"`
	Collected     int    `json:"collected"`
	Needed        int    `json:"needed"`
	Description   string `json:"description,omitempty"`
}

// SIGNAL (host -> engine): the asynchronous restricted-action signal a probe
// triggers when the named entity exists and is within range.
type SignalMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Source          string `json:"source"`
	Action          string `json:"action"`
	Entity          string `json:"entity"`
}

// SELECT / HOVER (host -> engine): empty entity means "cleared".
type SelectMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Entity          string `json:"entity"`
}

type HoverMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Entity          string `json:"entity"`
}

// GROUP (host -> engine)
type GroupMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	InGroup         bool   `json:"in_group"`
	IsLeader        bool   `json:"is_leader"`
}

// CONTROL (host -> engine): the host-side command surface. Op names mirror the
// engine operations one to one.
const (
	OpAddManual           = "ADD_MANUAL"
	OpClearManual         = "CLEAR_MANUAL"
	OpSetDefaultTimeout   = "SET_DEFAULT_TIMEOUT"
	OpToggleShowCompleted = "TOGGLE_SHOW_COMPLETED"
	OpToggleGroupOverride = "TOGGLE_GROUP_OVERRIDE"
	OpInspect             = "INSPECT"
	OpTarget              = "TARGET"
)

type ControlMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Op              string `json:"op"`
	Name            string `json:"name,omitempty"`
	TimeoutS        int    `json:"timeout_s,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
}

// PROBE (engine -> host): attempt the restricted action against the named
// entity. Fire and forget; a SIGNAL comes back only on an in-range hit.
type ProbeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Tick            uint64 `json:"tick"`
	Entity          string `json:"entity"`
	Action          string `json:"action"`
}

// MARK (engine -> host)
const (
	MarkOpSet   = "SET"
	MarkOpClear = "CLEAR"
)

type MarkMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Tick            uint64 `json:"tick"`
	Op              string `json:"op"`
	Entity          string `json:"entity"`
	Marker          int    `json:"marker,omitempty"`
}

// BUFFER (engine -> host): a command-buffer write. Sent only when the content
// differs from the previous write.
type BufferMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Tick            uint64 `json:"tick"`
	Slot            string `json:"slot"`
	Text            string `json:"text"`
}

// COMMAND (engine -> host): a single command line to execute immediately,
// outside the persistent buffer. Issued in response to a TARGET control op.
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Tick            uint64 `json:"tick"`
	Text            string `json:"text"`
}

// ROSTER (engine -> host): the per-tick observation the rendering layer
// consumes. Entities are in prioritized order.
type RosterMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version,omitempty"`
	Tick            uint64       `json:"tick"`
	Entities        []EntityWire `json:"entities"`
}

type EntityWire struct {
	Name        string `json:"name"`
	Class       string `json:"class"`
	Progress    int    `json:"progress,omitempty"`
	Present     bool   `json:"present,omitempty"`
	Source      string `json:"source,omitempty"`
	ManualLeftS int    `json:"manual_left_s,omitempty"`
}

// RESULT (engine -> host): outcome of a CONTROL op.
type ResultMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version,omitempty"`
	RequestID       string      `json:"request_id,omitempty"`
	Op              string      `json:"op"`
	OK              bool        `json:"ok"`
	Code            string      `json:"code,omitempty"`
	Message         string      `json:"message,omitempty"`
	Entity          *EntityWire `json:"entity,omitempty"`
	Removed         int         `json:"removed,omitempty"`
}
