package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rentcore/internal/model"
	"rentcore/internal/orchestrator"
)

// ChatHandler exposes the conversational endpoint.
type ChatHandler struct {
	pipeline *orchestrator.Orchestrator
	log      *zap.SugaredLogger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(pipeline *orchestrator.Orchestrator, log *zap.SugaredLogger) *ChatHandler {
	return &ChatHandler{pipeline: pipeline, log: log}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	resp, err := h.pipeline.Handle(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message must not be empty"})
			return
		}
		h.log.Errorw("chat pipeline failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
