package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"estatechat/internal/model"
	"estatechat/internal/service"
)

// ChatResponder answers chat messages.
type ChatResponder interface {
	Handle(ctx context.Context, userMessage string, criteria model.FilterCriteria, history []model.ConversationTurn, opts ...service.GenerateOption) (string, error)
}

// ChatHandler handles chat HTTP requests
type ChatHandler struct {
	chat ChatResponder
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat ChatResponder) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	var opts []service.GenerateOption
	if req.ImageURL != "" {
		opts = append(opts, service.WithImageURL(req.ImageURL))
	}

	reply, err := h.chat.Handle(c.Request.Context(), req.Prompt, req.Criteria(), req.History, opts...)
	if err != nil {
		writeError(c, "Chat failed", err)
		return
	}

	c.JSON(http.StatusOK, model.ChatResponse{
		Reply:     reply,
		RequestID: c.GetString(requestIDKey),
	})
}
