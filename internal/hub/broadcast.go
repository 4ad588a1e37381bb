package hub

import (
	"github.com/rs/zerolog/log"

	"github.com/kindervilla/realtime/internal/core"
	"github.com/kindervilla/realtime/internal/domain"
)

// The four send primitives. All of them are best-effort: a recipient
// whose queue is full or whose connection closed mid-send is counted and
// skipped, never allowed to stall delivery to the rest.

// Unicast delivers a frame to exactly one connection.
func (h *Hub) Unicast(conn core.Conn, frame core.Frame) error {
	if err := conn.TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "hub").Str("sid", string(conn.SID())).Msg("unicast dropped")
		return err
	}
	return nil
}

// ToUser fans a frame out to every connection the user holds.
func (h *Hub) ToUser(uid domain.UserID, frame core.Frame) core.DeliveryResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.toUserLocked(uid, frame)
}

// BroadcastAll fans a frame out to every online user except exclude
// (empty means no exclusion).
func (h *Hub) BroadcastAll(frame core.Frame, exclude domain.UserID) core.DeliveryResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var res core.DeliveryResult
	for uid := range h.users {
		if uid == exclude {
			continue
		}
		res.Merge(h.toUserLocked(uid, frame))
	}
	logDropped("broadcast_all", res)
	return res
}

// BroadcastRoom fans a frame out to every member of the room except
// exclude (empty means no exclusion).
func (h *Hub) BroadcastRoom(rid domain.RoomID, frame core.Frame, exclude domain.UserID) core.DeliveryResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var res core.DeliveryResult
	for uid := range h.rooms[rid] {
		if uid == exclude {
			continue
		}
		res.Merge(h.toUserLocked(uid, frame))
	}
	logDropped("broadcast_room", res)
	return res
}

func (h *Hub) toUserLocked(uid domain.UserID, frame core.Frame) core.DeliveryResult {
	var res core.DeliveryResult
	for _, conn := range h.users[uid] {
		if err := conn.TrySend(frame); err != nil {
			res.Dropped++
			continue
		}
		res.Sent++
	}
	return res
}

func logDropped(op string, res core.DeliveryResult) {
	if res.Dropped > 0 {
		log.Warn().Str("module", "hub").Str("op", op).Int("sent", res.Sent).Int("dropped", res.Dropped).Msg("partial delivery")
	}
}
