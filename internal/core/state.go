package core

// ConnState tracks a connection through its lifecycle:
//
//	Connecting -> Unauthenticated -> Authenticated -> Closing -> Closed
//
// Any state may jump to Closing (transport close, protocol error, idle
// timeout); cleanup runs exactly once regardless of the trigger.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateUnauthenticated
	StateAuthenticated
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
