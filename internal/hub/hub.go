// Package hub is the shared state of the realtime service: which users are
// online, which connections each of them holds, and which rooms they are
// in. One Hub is constructed at process start and injected into every
// connection handler; there are no package-level singletons.
package hub

import (
	"sync"

	"github.com/kindervilla/realtime/internal/core"
	"github.com/kindervilla/realtime/internal/domain"
)

// Hub guards both maps with a single mutex so that a presence snapshot
// taken at any instant is consistent with the connection sets it was
// derived from. All mutations are linearizable; fan-out never blocks
// because conns only expose a non-blocking TrySend.
type Hub struct {
	mu    sync.RWMutex
	users map[domain.UserID]map[core.SessionID]core.Conn
	rooms map[domain.RoomID]map[domain.UserID]struct{}
}

func New() *Hub {
	return &Hub{
		users: make(map[domain.UserID]map[core.SessionID]core.Conn),
		rooms: make(map[domain.RoomID]map[domain.UserID]struct{}),
	}
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"memberCount"`
}

type Stats struct {
	OnlineUsers int `json:"onlineUsers"`
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := Stats{OnlineUsers: len(h.users), Rooms: len(h.rooms)}
	for _, conns := range h.users {
		s.Connections += len(conns)
	}
	return s
}

func (h *Hub) RoomList() []RoomInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]RoomInfo, 0, len(h.rooms))
	for id, members := range h.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: len(members)})
	}
	return out
}
