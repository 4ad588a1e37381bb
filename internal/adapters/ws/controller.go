package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kindervilla/realtime/internal/auth"
	"github.com/kindervilla/realtime/internal/config"
	"github.com/kindervilla/realtime/internal/core"
	"github.com/kindervilla/realtime/internal/hub"
	"github.com/kindervilla/realtime/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller accepts websocket connections and runs their lifecycle
// against the shared hub.
type Controller struct {
	Hub      *hub.Hub
	Verifier auth.Verifier
	Cfg      *config.Config
}

func NewController(h *hub.Hub, verifier auth.Verifier, cfg *config.Config) *Controller {
	return &Controller{Hub: h, Verifier: verifier, Cfg: cfg}
}

// HandleWS upgrades the request and serves the connection until it
// closes. The read loop runs on the handler goroutine; writes and the
// liveness check get their own.
func (ctl *Controller) HandleWS(c *gin.Context) {
	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}

	sid := core.SessionID(uuid.NewString())
	conn := newConn(sid, wsConn, ctl.Cfg.SendBuffer)
	wsConn.SetReadLimit(ctl.Cfg.ReadLimit)

	log.Info().Str("module", "ws").Str("sid", string(sid)).Str("remote", wsConn.RemoteAddr().String()).Msg("connection accepted")

	go ctl.writePump(conn)
	go ctl.monitor(conn)

	ctl.sendTo(conn, protocol.TypeWelcome, protocol.WelcomePayload{Message: "connected"})
	conn.setState(core.StateUnauthenticated)

	ctl.readPump(conn)
}

// sendTo encodes and unicasts one message, best-effort.
func (ctl *Controller) sendTo(conn *Conn, msgType string, payload any) {
	frame, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("type", msgType).Msg("encode failed")
		return
	}
	_ = ctl.Hub.Unicast(conn, frame)
}

func (ctl *Controller) sendError(conn *Conn, code, msg string) {
	ctl.sendTo(conn, protocol.TypeError, protocol.ErrorPayload{Code: code, Error: msg})
}

// publishPresence pushes the full online snapshot to everyone. Full
// snapshots keep clients stateless at O(n) cost per churn event; that
// bound is accepted, not optimized away.
func (ctl *Controller) publishPresence(users []string) {
	frame, err := protocol.Encode(protocol.TypePresenceUpdate, protocol.PresenceUpdatePayload{Users: users})
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("encode presence failed")
		return
	}
	ctl.Hub.BroadcastAll(frame, "")
}

// teardown runs the disconnect cascade. It is reached exactly once per
// connection, from the read loop's exit path, whatever closed it.
func (ctl *Controller) teardown(conn *Conn) {
	conn.setState(core.StateClosing)

	uid := conn.UserID()
	if uid != "" {
		res := ctl.Hub.Unbind(uid, conn.SID())
		for _, rid := range res.RoomsLeft {
			frame, err := protocol.Encode(protocol.TypeUserLeft, protocol.UserLeftPayload{UserID: string(uid), RoomID: string(rid)})
			if err != nil {
				continue
			}
			ctl.Hub.BroadcastRoom(rid, frame, uid)
		}
		if res.Removed {
			ctl.publishPresence(res.Presence)
		}
	}

	conn.Close()
	log.Info().Str("module", "ws").Str("sid", string(conn.SID())).Str("user", string(uid)).Msg("connection closed")
}
