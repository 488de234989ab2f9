package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/ryanhackme1207/Everspace/internal/config"
)

func SetupRouter(ctx context.Context, cfg *config.Config, api *API, ws *ChatWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("EverspaceSessions", store))

	r.POST("/api/register", api.Register)
	r.POST("/api/login", api.Login)

	authed := r.Group("/", AuthMiddleware([]byte(cfg.Secret), api.Users))

	authed.GET("/api/rooms", api.ListRooms)
	authed.POST("/api/rooms", api.CreateRoom)
	authed.POST("/api/rooms/:name/join", api.JoinRoom)
	authed.DELETE("/api/rooms/:name", api.DeleteRoom)
	authed.GET("/api/rooms/:name/messages", api.RoomMessages)

	authed.POST("/api/rooms/:name/kick", api.KickUser)
	authed.POST("/api/rooms/:name/ban", api.BanUser)
	authed.POST("/api/rooms/:name/unban", api.UnbanUser)
	authed.POST("/api/rooms/:name/transfer", api.TransferOwnership)

	authed.GET("/ws/chat/:room", func(c *gin.Context) {
		ws.HandleChat(ctx, c)
	})

	return r
}
