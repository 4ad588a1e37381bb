package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *Controller) readPump(conn *Conn) {
	defer ctl.teardown(conn)

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "ws").Str("sid", string(conn.SID())).Msg("read error")
			}
			return
		}
		conn.Touch()
		ctl.dispatch(conn, data)
	}
}

func (ctl *Controller) writePump(conn *Conn) {
	for {
		select {
		case <-conn.done:
			return
		case frame, ok := <-conn.send:
			if !ok {
				return
			}
			if err := conn.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				conn.Close()
				return
			}
			if err := conn.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("module", "ws").Str("sid", string(conn.SID())).Msg("write error")
				conn.Close()
				return
			}
		}
	}
}

// monitor closes connections that went silent. The server never pings
// proactively; clients are expected to send ping frames, and any inbound
// traffic resets the idle clock.
func (ctl *Controller) monitor(conn *Conn) {
	ticker := time.NewTicker(ctl.Cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			return
		case <-ticker.C:
			if time.Since(conn.LastSeen()) > ctl.Cfg.IdleTimeout {
				log.Info().Str("module", "ws").Str("sid", string(conn.SID())).Msg("idle timeout, closing")
				_ = conn.ws.Close()
				return
			}
		}
	}
}
