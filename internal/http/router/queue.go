package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/refactor/internal/http/handler"
)

func QueueRouter(rg *gin.RouterGroup, h *handler.QueueHandler) {
	rg.GET("", h.Depths)
}
