package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/refactor/internal/model"
	"basegraph.app/refactor/internal/queue"
)

type QueueInspector interface {
	Depth(ctx context.Context, topic string) (int64, error)
}

// QueueHandler reports backlog per topic so a stalled capability shows up as a
// growing task queue.
type QueueHandler struct {
	inspector    QueueInspector
	capabilities []model.Capability
	resultTopic  string
}

func NewQueueHandler(inspector QueueInspector, capabilities []model.Capability, resultTopic string) *QueueHandler {
	return &QueueHandler{
		inspector:    inspector,
		capabilities: capabilities,
		resultTopic:  resultTopic,
	}
}

func (h *QueueHandler) Depths(c *gin.Context) {
	ctx := c.Request.Context()

	topics := make([]string, 0, len(h.capabilities)+1)
	for _, capability := range h.capabilities {
		topics = append(topics, queue.TaskTopic(capability))
	}
	topics = append(topics, h.resultTopic)

	depths := make(map[string]int64, len(topics))
	for _, topic := range topics {
		n, err := h.inspector.Depth(ctx, topic)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable", "topic": topic})
			return
		}
		depths[topic] = n
	}
	c.JSON(http.StatusOK, gin.H{"topics": depths})
}
