package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	// Host -> engine.
	TypeHello   = "HELLO"
	TypeQuests  = "QUESTS"
	TypeSignal  = "SIGNAL"
	TypeSelect  = "SELECT"
	TypeHover   = "HOVER"
	TypeGroup   = "GROUP"
	TypeControl = "CONTROL"

	// Engine -> host.
	TypeWelcome = "WELCOME"
	TypeProbe   = "PROBE"
	TypeMark    = "MARK"
	TypeBuffer  = "BUFFER"
	TypeCommand = "COMMAND"
	TypeRoster  = "ROSTER"
	TypeResult  = "RESULT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
