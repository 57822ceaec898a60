package exception

import "errors"

// Stream errors
var (
	ErrConnection     = errors.New("stream: connection failure")
	ErrReceiveTimeout = errors.New("stream: receive timeout")
	ErrDecode         = errors.New("stream: decode failure")
	ErrBootstrap      = errors.New("stream: bootstrap failure")
)

// Bus errors
var (
	ErrQueueFull   = errors.New("bus: event queue full")
	ErrQueueClosed = errors.New("bus: event queue closed")
)
