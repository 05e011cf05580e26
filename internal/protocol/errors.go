package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// World routing/state.
	ErrWorldBusy    = "E_WORLD_BUSY"
	ErrWorldStopped = "E_WORLD_STOPPED"

	// Spawn layer.
	ErrBadRequest      = "E_BAD_REQUEST"
	ErrUnknownCategory = "E_UNKNOWN_CATEGORY"
	ErrQueueFull       = "E_QUEUE_FULL"
	ErrNotFound        = "E_NOT_FOUND"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrWorldBusy:       {},
	ErrWorldStopped:    {},
	ErrBadRequest:      {},
	ErrUnknownCategory: {},
	ErrQueueFull:       {},
	ErrNotFound:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
