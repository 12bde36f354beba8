package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Engine conditions. All four are silent, return-value-only outcomes;
	// nothing in the engine escalates them past a RESULT message.
	ErrNotFound      = "E_NOT_FOUND"
	ErrIneligible    = "E_INELIGIBLE"
	ErrUnavailable   = "E_UNAVAILABLE"
	ErrBoundExceeded = "E_BOUND_EXCEEDED"

	ErrBadRequest = "E_BAD_REQUEST"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrNotFound:        {},
	ErrIneligible:      {},
	ErrUnavailable:     {},
	ErrBoundExceeded:   {},
	ErrBadRequest:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
