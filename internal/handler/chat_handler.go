package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/petri/petri-go/internal/model"
	"go.uber.org/zap"
)

// ChatAnswerer 问答流水线
type ChatAnswerer interface {
	Answer(ctx context.Context, req model.ChatRequest) (model.ComposedAnswer, error)
}

// ChatHandler /chat 处理器
type ChatHandler struct {
	chat   ChatAnswerer
	logger *zap.Logger
}

// NewChatHandler 创建问答处理器
func NewChatHandler(chat ChatAnswerer, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: logger,
	}
}

// Chat 处理问答请求，空请求体按 {} 处理，空消息也会走完整流水线
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("请求体解析失败", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid JSON body"})
		return
	}

	answer, err := h.chat.Answer(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("问答失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:  "Chat failed",
			Detail: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, answer.ToResponse())
}
