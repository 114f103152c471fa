package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"basegraph.app/refactor/internal/model"
	"basegraph.app/refactor/internal/store"
)

// RunReader is the read side of the run store.
type RunReader interface {
	GetByBatchID(ctx context.Context, batchID string) (*model.Run, error)
	ListByFile(ctx context.Context, fileName string, limit int32) ([]model.Run, error)
}

type RunHandler struct {
	runs RunReader
}

func NewRunHandler(runs RunReader) *RunHandler {
	return &RunHandler{runs: runs}
}

func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.runs.GetByBatchID(c.Request.Context(), c.Param("batch_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *RunHandler) List(c *gin.Context) {
	file := c.Query("file")
	if file == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}

	limit := int32(20)
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n < 1 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = int32(n)
	}

	runs, err := h.runs.ListByFile(c.Request.Context(), file, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
