package signaling

import "errors"

var (
	ErrNotConnected   = errors.New("socket is not connected")
	ErrClosed         = errors.New("client closed")
	ErrTimeout        = errors.New("request timed out")
	ErrConnectionLost = errors.New("connection lost")
)
