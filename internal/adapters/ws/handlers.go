package ws

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kindervilla/realtime/internal/core"
	"github.com/kindervilla/realtime/internal/domain"
	"github.com/kindervilla/realtime/internal/protocol"
)

// dispatch routes one inbound frame. Until the connection authenticates,
// only auth and ping get through; everything else is answered with an
// error frame and not processed.
func (ctl *Controller) dispatch(conn *Conn, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("sid", string(conn.SID())).Msg("protocol error, frame dropped")
		return
	}

	switch env.Type {
	case protocol.TypeAuth:
		ctl.handleAuth(conn, env)
		return
	case protocol.TypePing:
		ctl.handlePing(conn)
		return
	}

	if conn.State() != core.StateAuthenticated {
		ctl.sendError(conn, protocol.CodeNotAuthenticated, "authenticate first")
		return
	}

	switch env.Type {
	case protocol.TypeJoinRoom:
		ctl.handleJoinRoom(conn, env)
	case protocol.TypeLeaveRoom:
		ctl.handleLeaveRoom(conn, env)
	case protocol.TypeChatMessage:
		ctl.handleChatMessage(conn, env)
	case protocol.TypeTyping:
		ctl.handleTyping(conn, env)
	case protocol.TypePresence:
		ctl.handlePresence(conn)
	default:
		log.Warn().Str("module", "ws").Str("sid", string(conn.SID())).Str("type", env.Type).Msg("unknown message type, frame dropped")
	}
}

// handleAuth promotes the connection to its identity. Failure keeps the
// connection open and unauthenticated so the client can retry; nothing is
// registered before the token verifies.
func (ctl *Controller) handleAuth(conn *Conn, env *protocol.Envelope) {
	if conn.State() == core.StateAuthenticated {
		ctl.sendError(conn, protocol.CodeAlreadyAuthenticated, "connection already authenticated")
		return
	}

	p, err := protocol.ParsePayload[protocol.AuthPayload](env)
	if err != nil {
		ctl.sendError(conn, protocol.CodeBadPayload, "auth payload invalid")
		return
	}

	uid, err := ctl.Verifier.Verify(p.Token)
	if err != nil {
		log.Info().Err(err).Str("module", "ws").Str("sid", string(conn.SID())).Msg("auth failed")
		ctl.sendTo(conn, protocol.TypeAuthFailed, protocol.AuthFailedPayload{Error: err.Error()})
		return
	}

	conn.bind(uid)
	presence := ctl.Hub.Bind(uid, conn)
	ctl.sendTo(conn, protocol.TypeAuthSuccess, protocol.AuthSuccessPayload{UserID: string(uid)})
	ctl.publishPresence(presence)
	log.Info().Str("module", "ws").Str("sid", string(conn.SID())).Str("user", string(uid)).Msg("authenticated")
}

func (ctl *Controller) handleJoinRoom(conn *Conn, env *protocol.Envelope) {
	p, err := protocol.ParsePayload[protocol.JoinRoomPayload](env)
	if err != nil {
		ctl.sendError(conn, protocol.CodeBadPayload, "join_room payload invalid")
		return
	}
	rid, err := domain.ParseRoomID(p.RoomID)
	if err != nil {
		ctl.sendError(conn, protocol.CodeBadPayload, err.Error())
		return
	}

	uid := conn.UserID()
	if !ctl.Hub.JoinRoom(uid, rid) {
		return
	}
	frame, err := protocol.Encode(protocol.TypeUserJoined, protocol.UserJoinedPayload{UserID: string(uid), RoomID: string(rid)})
	if err != nil {
		return
	}
	ctl.Hub.BroadcastRoom(rid, frame, uid)
}

func (ctl *Controller) handleLeaveRoom(conn *Conn, env *protocol.Envelope) {
	p, err := protocol.ParsePayload[protocol.LeaveRoomPayload](env)
	if err != nil {
		ctl.sendError(conn, protocol.CodeBadPayload, "leave_room payload invalid")
		return
	}
	rid, err := domain.ParseRoomID(p.RoomID)
	if err != nil {
		ctl.sendError(conn, protocol.CodeBadPayload, err.Error())
		return
	}

	uid := conn.UserID()
	if !ctl.Hub.LeaveRoom(uid, rid) {
		return
	}
	frame, err := protocol.Encode(protocol.TypeUserLeft, protocol.UserLeftPayload{UserID: string(uid), RoomID: string(rid)})
	if err != nil {
		return
	}
	ctl.Hub.BroadcastRoom(rid, frame, uid)
}

func (ctl *Controller) handleChatMessage(conn *Conn, env *protocol.Envelope) {
	p, err := protocol.ParsePayload[protocol.ChatMessagePayload](env)
	if err != nil {
		ctl.sendError(conn, protocol.CodeBadPayload, "chat_message payload invalid")
		return
	}
	rid, err := domain.ParseRoomID(p.RoomID)
	if err != nil {
		ctl.sendError(conn, protocol.CodeBadPayload, err.Error())
		return
	}

	uid := conn.UserID()
	frame, err := protocol.Encode(protocol.TypeChatMessage, protocol.ChatMessageOut{
		RoomID:    string(rid),
		UserID:    string(uid),
		Message:   p.Message,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	ctl.Hub.BroadcastRoom(rid, frame, uid)
}

func (ctl *Controller) handleTyping(conn *Conn, env *protocol.Envelope) {
	p, err := protocol.ParsePayload[protocol.TypingPayload](env)
	if err != nil {
		ctl.sendError(conn, protocol.CodeBadPayload, "typing payload invalid")
		return
	}
	rid, err := domain.ParseRoomID(p.RoomID)
	if err != nil {
		ctl.sendError(conn, protocol.CodeBadPayload, err.Error())
		return
	}

	uid := conn.UserID()
	frame, err := protocol.Encode(protocol.TypeTyping, protocol.TypingOut{
		RoomID:   string(rid),
		UserID:   string(uid),
		IsTyping: p.IsTyping,
	})
	if err != nil {
		return
	}
	ctl.Hub.BroadcastRoom(rid, frame, uid)
}

// handlePresence answers a client-requested refresh; the snapshot goes to
// the requester only.
func (ctl *Controller) handlePresence(conn *Conn) {
	ctl.sendTo(conn, protocol.TypePresenceUpdate, protocol.PresenceUpdatePayload{Users: ctl.Hub.OnlineUsers()})
}

func (ctl *Controller) handlePing(conn *Conn) {
	ctl.sendTo(conn, protocol.TypePong, protocol.PongPayload{Timestamp: time.Now().UnixMilli()})
}
