package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/petri/petri-go/internal/service"
	"go.uber.org/zap"
)

// APIHandler API 处理器
type APIHandler struct {
	serviceName    string
	sessionService *service.SessionService
	logger         *zap.Logger
}

// NewAPIHandler 创建 API 处理器
func NewAPIHandler(serviceName string, sessionService *service.SessionService, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		serviceName:    serviceName,
		sessionService: sessionService,
		logger:         logger,
	}
}

// Health 健康检查
func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "UP",
		"service":         h.serviceName,
		"online_sessions": h.sessionService.Count(),
	})
}
