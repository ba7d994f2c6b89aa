package handler

import (
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"saykit-agent/internal/middleware"
	"saykit-agent/internal/service/conversation"
)

// Router 注册路由与中间件；staticDir 非空时在 / 提供 index.html
func Router(hub *conversation.Hub, staticDir string, log *logrus.Entry) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logger(log))

	sessions := NewSessionHandler(hub)
	v1 := r.Group("/api/v1")
	{
		v1.POST("/sessions", sessions.Create)
		v1.GET("/sessions/:id", sessions.Get)
		v1.DELETE("/sessions/:id", sessions.Delete)
		v1.POST("/sessions/:id/text", sessions.Text)
		v1.POST("/sessions/:id/listen", sessions.Listen)
		v1.POST("/sessions/:id/requests", sessions.Present)
		v1.POST("/sessions/:id/requests/choose", sessions.Choose)
		v1.POST("/sessions/:id/requests/cancel", sessions.Cancel)
		v1.POST("/sessions/:id/requests/fail", sessions.Fail)
		v1.GET("/sessions/:id/events", sessions.Events)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "sessions": hub.Len()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if staticDir != "" {
		r.StaticFile("/", filepath.Join(staticDir, "index.html"))
		r.Static("/static", staticDir)
	}
	return r
}
