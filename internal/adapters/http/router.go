package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/repolink/repolink/internal/adapters/poll"
	"github.com/repolink/repolink/internal/adapters/ws"
	"github.com/repolink/repolink/internal/app"
	"github.com/repolink/repolink/internal/config"
	"github.com/repolink/repolink/internal/core"
)

// ClientTokenMiddleware tags every browser with a stable opaque id.
// This is not the peer identity (that is assigned per connection), just
// an operational correlation handle.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, coord *app.Coordinator, queue core.SignalQueue) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("RepoLinkSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	api := r.Group("/api")

	wsCtl := &ws.Controller{
		Coord:      coord,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	}
	api.GET("/ws/signal", func(c *gin.Context) {
		wsCtl.Handle(ctx, c)
	})

	pollCtl := &poll.Controller{
		Coord:   coord,
		Queue:   queue,
		Limiter: poll.NewRateLimiter(cfg.SendLimit, cfg.SendWindow),
	}
	pg := api.Group("/poll")
	pg.POST("/join", pollCtl.Join)
	pg.POST("/poll", pollCtl.Poll)
	pg.POST("/send", pollCtl.Send)
	pg.POST("/leave", pollCtl.Leave)

	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, coord.Stats())
	})
	api.GET("/ice", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": coord.ICEServers})
	})

	return r
}
