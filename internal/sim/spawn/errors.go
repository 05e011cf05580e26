package spawn

import "errors"

var (
	ErrUnknownCategory = errors.New("unknown structure category")
	ErrQueueFull       = errors.New("pending request limit reached")
)
