// Package ws is the WebSocket adapter: it owns the transport connections,
// their state machine and liveness, and translates wire frames into hub
// operations.
package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kindervilla/realtime/internal/core"
	"github.com/kindervilla/realtime/internal/domain"
)

// Conn wraps one websocket session. The read loop is the only writer of
// uid/state transitions besides Close; everything the rest of the system
// shares is the bounded send queue behind TrySend.
type Conn struct {
	sid  core.SessionID
	ws   *websocket.Conn
	send chan core.Frame
	done chan struct{}

	state    atomic.Int32
	lastSeen atomic.Int64

	mu     sync.RWMutex
	uid    domain.UserID
	closed bool
}

func newConn(sid core.SessionID, ws *websocket.Conn, sendBuffer int) *Conn {
	c := &Conn{
		sid:  sid,
		ws:   ws,
		send: make(chan core.Frame, sendBuffer),
		done: make(chan struct{}),
	}
	c.state.Store(int32(core.StateConnecting))
	c.Touch()
	return c
}

func (c *Conn) SID() core.SessionID { return c.sid }

// TrySend enqueues a frame without blocking. Full queue or closed
// connection drops the frame; the caller counts, the connection stays up.
func (c *Conn) TrySend(frame core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return core.ErrBackpressure
	}
}

// Close is idempotent: the first call closes the queue and the socket,
// later calls are no-ops.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state.Store(int32(core.StateClosed))
	close(c.send)
	close(c.done)
	_ = c.ws.Close()
	c.mu.Unlock()
}

func (c *Conn) State() core.ConnState {
	return core.ConnState(c.state.Load())
}

func (c *Conn) setState(s core.ConnState) {
	c.state.Store(int32(s))
}

// UserID returns the bound identity, empty until authenticated.
func (c *Conn) UserID() domain.UserID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uid
}

func (c *Conn) bind(uid domain.UserID) {
	c.mu.Lock()
	c.uid = uid
	c.mu.Unlock()
	c.setState(core.StateAuthenticated)
}

// Touch records inbound activity for the idle-timeout check.
func (c *Conn) Touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

func (c *Conn) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}
