package hub

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/kindervilla/realtime/internal/core"
	"github.com/kindervilla/realtime/internal/domain"
)

// Bind adds a connection to the user's connection set, creating the entry
// on the first device. It returns the presence snapshot taken under the
// same lock, ready to broadcast.
func (h *Hub) Bind(uid domain.UserID, conn core.Conn) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.users[uid]
	if !ok {
		conns = make(map[core.SessionID]core.Conn)
		h.users[uid] = conns
	}
	conns[conn.SID()] = conn
	log.Info().Str("module", "hub").Str("user", string(uid)).Str("sid", string(conn.SID())).Int("devices", len(conns)).Msg("bound connection")

	return h.onlineLocked()
}

// UnbindResult reports what an Unbind changed so the caller can notify
// the right scopes: rooms the user vacated and the fresh presence list.
type UnbindResult struct {
	Removed     bool
	WentOffline bool
	RoomsLeft   []domain.RoomID
	Presence    []string
}

// Unbind removes one connection. When it was the user's last one the
// entry is deleted and the user implicitly leaves every room, exactly as
// if it had sent leave_room for each.
func (h *Hub) Unbind(uid domain.UserID, sid core.SessionID) UnbindResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	var res UnbindResult
	conns, ok := h.users[uid]
	if !ok {
		return res
	}
	if _, ok := conns[sid]; !ok {
		return res
	}
	delete(conns, sid)
	res.Removed = true

	if len(conns) == 0 {
		delete(h.users, uid)
		res.WentOffline = true
		res.RoomsLeft = h.leaveAllLocked(uid)
	}
	res.Presence = h.onlineLocked()

	log.Info().Str("module", "hub").Str("user", string(uid)).Str("sid", string(sid)).Bool("offline", res.WentOffline).Msg("unbound connection")
	return res
}

// ConnectionsOf returns the user's live connections, or nil when offline.
func (h *Hub) ConnectionsOf(uid domain.UserID) []core.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns, ok := h.users[uid]
	if !ok {
		return nil
	}
	out := make([]core.Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// OnlineUsers returns the sorted list of users with at least one live
// connection.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onlineLocked()
}

func (h *Hub) onlineLocked() []string {
	out := make([]string, 0, len(h.users))
	for uid := range h.users {
		out = append(out, string(uid))
	}
	sort.Strings(out)
	return out
}
