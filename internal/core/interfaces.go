package core

// Frame is an encoded wire message, ready to hand to a transport.
type Frame []byte

// SessionID identifies one physical connection. Assigned at upgrade time,
// never reused.
type SessionID string

// Conn abstracts a connection's outbound side for the hub.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	// SID returns the connection's session id.
	SID() SessionID
	// TrySend enqueues a frame without blocking. It returns ErrBackpressure
	// when the outbound queue is full and ErrConnClosed after close; the
	// frame is dropped in both cases.
	TrySend(Frame) error
	// Close tears the connection down. Safe to call more than once.
	Close()
}

// DeliveryResult reports fan-out stats back to the caller. Per-recipient
// failures are counted here, never propagated.
type DeliveryResult struct {
	Sent    int
	Dropped int
}

func (r *DeliveryResult) Merge(other DeliveryResult) {
	r.Sent += other.Sent
	r.Dropped += other.Dropped
}
