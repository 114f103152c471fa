package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"basegraph.app/refactor/internal/http/handler"
)

type RouterConfig struct {
	Queues *handler.QueueHandler
	Runs   *handler.RunHandler // nil when no run store is configured
}

func SetupRoutes(router *gin.Engine, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		if cfg.Queues != nil {
			QueueRouter(v1.Group("/queues"), cfg.Queues)
		}
		if cfg.Runs != nil {
			RunRouter(v1.Group("/runs"), cfg.Runs)
		}
	}
}
