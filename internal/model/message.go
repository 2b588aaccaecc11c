package model

import "time"

// ChatRequest 问答请求
type ChatRequest struct {
	Message  string `json:"message"`
	Species  string `json:"species,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// ChatResponse 问答成功响应
type ChatResponse struct {
	OK      bool     `json:"ok"`
	Answer  string   `json:"answer"`
	UsedKB  bool     `json:"usedKb"`
	KBIDs   []int64  `json:"kbIds"`
	Sources []string `json:"sources"`
}

// UploadResponse 上传成功响应
type UploadResponse struct {
	OK       bool   `json:"ok"`
	ImageURL string `json:"imageUrl"`
	Path     string `json:"path"`
}

// ErrorResponse 错误响应，Detail 只包含错误的字符串形式
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Method string `json:"method,omitempty"`
}

// WebSocket 帧类型
const (
	WSTypeChat      = "CHAT"
	WSTypeHeartbeat = "HEARTBEAT"
	WSTypeAnswer    = "ANSWER"
	WSTypeError     = "ERROR"
)

// WSMessage WebSocket 消息帧
type WSMessage struct {
	MessageID string        `json:"messageId"`
	Type      string        `json:"type"`
	Content   string        `json:"content,omitempty"`
	Species   string        `json:"species,omitempty"`
	ImageURL  string        `json:"imageUrl,omitempty"`
	Answer    *ChatResponse `json:"answer,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// ToChatRequest 将 CHAT 帧转换为问答请求
func (m *WSMessage) ToChatRequest() ChatRequest {
	return ChatRequest{
		Message:  m.Content,
		Species:  m.Species,
		ImageURL: m.ImageURL,
	}
}
