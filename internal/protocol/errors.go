package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Request handling.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrBusy       = "E_BUSY"
	ErrRateLimit  = "E_RATE_LIMIT"

	// Generation outcome.
	ErrContradiction     = "E_CONTRADICTION"
	ErrAttemptsExhausted = "E_ATTEMPTS_EXHAUSTED"
	ErrCanceled          = "E_CANCELED"
	ErrInternal          = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:   {},
	ErrProtoVersion:      {},
	ErrBadRequest:        {},
	ErrBusy:              {},
	ErrRateLimit:         {},
	ErrContradiction:     {},
	ErrAttemptsExhausted: {},
	ErrCanceled:          {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
