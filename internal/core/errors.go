package core

import "errors"

var (
	// ErrBackpressure means the recipient's outbound queue was full; the
	// frame was dropped rather than blocking the sender.
	ErrBackpressure = errors.New("backpressure")
	// ErrConnClosed means the connection was already closed when the send
	// was attempted.
	ErrConnClosed = errors.New("connection closed")
)
