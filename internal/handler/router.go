package handler

import (
	"communitycore/internal/metrics"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(svc *Services) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(metrics.GinMiddleware())

	h := NewHandler(svc)

	api := r.Group("/api/v1")
	{
		identity := api.Group("/identity")
		{
			identity.POST("/link", h.Link)
			identity.POST("/unlink", h.Unlink)
			identity.GET("/links", h.ListLinks)
			identity.GET("/roster", h.Roster)
		}

		economy := api.Group("/economy")
		{
			economy.GET("/balance", h.GetBalance)
			economy.POST("/transfer", h.Transfer)
			economy.POST("/swap", h.Swap)
			economy.POST("/daily", h.Daily)
			economy.POST("/adjust", h.Adjust)
			economy.GET("/history", h.History)
			economy.GET("/reconcile", h.Reconcile)
		}

		kf := api.Group("/killfeed")
		{
			kf.POST("/ingest", h.IngestKill)
			kf.GET("/stats", h.GetStats)
			kf.GET("/config", h.GetKillfeedConfig)
			kf.PUT("/config", h.SetKillfeedConfig)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}
