package bridge

import "errors"

// ErrUnknownIntent and related errors describe undecodable view messages.
var (
	ErrUnknownIntent   = errors.New("unknown intent type")
	ErrMalformedIntent = errors.New("malformed intent")
)
