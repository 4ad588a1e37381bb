package hub

import (
	"github.com/rs/zerolog/log"

	"github.com/kindervilla/realtime/internal/domain"
)

// JoinRoom adds the user to the room, creating it on first join. It
// reports whether membership actually changed, so the caller does not
// announce duplicate joins from a second device.
func (h *Hub) JoinRoom(uid domain.UserID, rid domain.RoomID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[rid]
	if !ok {
		members = make(map[domain.UserID]struct{})
		h.rooms[rid] = members
	}
	if _, ok := members[uid]; ok {
		return false
	}
	members[uid] = struct{}{}
	log.Info().Str("module", "hub").Str("user", string(uid)).Str("room", string(rid)).Int("members", len(members)).Msg("joined room")
	return true
}

// LeaveRoom removes the user from the room, deleting the room when its
// member set empties. Reports whether the user was a member.
func (h *Hub) LeaveRoom(uid domain.UserID, rid domain.RoomID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(uid, rid)
}

// LeaveAll removes the user from every room it is in and returns the
// rooms it actually left.
func (h *Hub) LeaveAll(uid domain.UserID) []domain.RoomID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveAllLocked(uid)
}

// MembersOf returns the room's members, or nil when the room does not
// exist.
func (h *Hub) MembersOf(rid domain.RoomID) []domain.UserID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members, ok := h.rooms[rid]
	if !ok {
		return nil
	}
	out := make([]domain.UserID, 0, len(members))
	for uid := range members {
		out = append(out, uid)
	}
	return out
}

// IsMember reports whether the user is currently in the room.
func (h *Hub) IsMember(uid domain.UserID, rid domain.RoomID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members, ok := h.rooms[rid]
	if !ok {
		return false
	}
	_, ok = members[uid]
	return ok
}

func (h *Hub) leaveLocked(uid domain.UserID, rid domain.RoomID) bool {
	members, ok := h.rooms[rid]
	if !ok {
		return false
	}
	if _, ok := members[uid]; !ok {
		return false
	}
	delete(members, uid)
	if len(members) == 0 {
		delete(h.rooms, rid)
		log.Debug().Str("module", "hub").Str("room", string(rid)).Msg("room removed")
	}
	log.Info().Str("module", "hub").Str("user", string(uid)).Str("room", string(rid)).Msg("left room")
	return true
}

func (h *Hub) leaveAllLocked(uid domain.UserID) []domain.RoomID {
	var left []domain.RoomID
	for rid, members := range h.rooms {
		if _, ok := members[uid]; !ok {
			continue
		}
		delete(members, uid)
		if len(members) == 0 {
			delete(h.rooms, rid)
		}
		left = append(left, rid)
	}
	if len(left) > 0 {
		log.Info().Str("module", "hub").Str("user", string(uid)).Int("rooms", len(left)).Msg("left all rooms")
	}
	return left
}
