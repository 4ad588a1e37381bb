package http

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kindervilla/realtime/internal/adapters/ws"
	"github.com/kindervilla/realtime/internal/config"
	"github.com/kindervilla/realtime/internal/hub"
)

// SetupRouter wires the realtime endpoint plus the small operational
// surface the admin dashboard reads.
func SetupRouter(cfg *config.Config, h *hub.Hub, wsCtl *ws.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("KindervillaSessions", store))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, h.Stats())
	})
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, h.RoomList())
	})

	r.GET("/ws", wsCtl.HandleWS)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
