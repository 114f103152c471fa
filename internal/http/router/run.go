package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/refactor/internal/http/handler"
)

func RunRouter(rg *gin.RouterGroup, h *handler.RunHandler) {
	rg.GET("", h.List)
	rg.GET("/:batch_id", h.Get)
}
