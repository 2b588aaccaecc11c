package router

import (
	"github.com/gin-gonic/gin"
	"github.com/petri/petri-go/internal/handler"
	"github.com/petri/petri-go/internal/middleware"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Chat      *handler.ChatHandler
	Upload    *handler.UploadHandler
	WebSocket *handler.WebSocketHandler
	API       *handler.APIHandler
}

// NewRouter 注册全部路由。/chat 与 /upload 接受任意方法，由中间件返回 405
func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.Any("/chat", middleware.CORS(), middleware.RequirePOST(), h.Chat.Chat)
	r.Any("/upload", middleware.RequirePOST(), h.Upload.Upload)

	r.GET("/ws", h.WebSocket.HandleWebSocket)
	r.GET("/api/health", h.API.Health)

	return r
}
