package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/petri/petri-go/internal/model"
	"github.com/petri/petri-go/internal/service"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler WebSocket 处理器，CHAT 帧走与 /chat 相同的流水线
type WebSocketHandler struct {
	sessionService *service.SessionService
	chat           ChatAnswerer
	logger         *zap.Logger
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler(sessionService *service.SessionService, chat ChatAnswerer, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		sessionService: sessionService,
		chat:           chat,
		logger:         logger,
	}
}

// HandleWebSocket WebSocket 连接入口
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket 升级失败", zap.Error(err))
		return
	}
	defer conn.Close()

	session := model.NewWSSession(uuid.New().String(), conn, c.ClientIP(), time.Now())
	h.sessionService.Register(session)
	defer h.sessionService.Remove(session.SessionID)

	h.logger.Info("WebSocket 连接建立", zap.String("sessionId", session.SessionID))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	for {
		var msg model.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Error("WebSocket 读取错误", zap.Error(err))
			}
			break
		}
		h.handleMessage(ctx, session, &msg)
	}

	h.logger.Info("WebSocket 连接断开", zap.String("sessionId", session.SessionID))
}

// handleMessage 处理客户端消息
func (h *WebSocketHandler) handleMessage(ctx context.Context, session *model.WSSession, msg *model.WSMessage) {
	switch msg.Type {
	case model.WSTypeChat:
		go h.answer(ctx, session, *msg)

	case model.WSTypeHeartbeat:
		h.sessionService.Touch(session.SessionID)
		h.logger.Debug("收到心跳", zap.String("sessionId", session.SessionID))

	default:
		h.logger.Warn("未知消息类型",
			zap.String("sessionId", session.SessionID),
			zap.String("type", msg.Type))
	}
}

// answer 异步执行问答并回写 ANSWER 或 ERROR 帧
func (h *WebSocketHandler) answer(ctx context.Context, session *model.WSSession, msg model.WSMessage) {
	reply := model.WSMessage{
		MessageID: msg.MessageID,
		Type:      model.WSTypeAnswer,
		Timestamp: time.Now(),
	}

	answer, err := h.chat.Answer(ctx, msg.ToChatRequest())
	if err != nil {
		h.logger.Error("问答失败",
			zap.String("sessionId", session.SessionID),
			zap.Error(err))
		reply.Type = model.WSTypeError
		reply.Error = err.Error()
	} else {
		resp := answer.ToResponse()
		reply.Answer = &resp
	}

	if err := session.WriteMessage(reply); err != nil {
		h.logger.Warn("推送消息失败",
			zap.String("sessionId", session.SessionID),
			zap.Error(err))
	}
}
