package model

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSSession WebSocket 会话
type WSSession struct {
	SessionID     string
	Conn          *websocket.Conn
	ClientIP      string
	ConnectedAt   time.Time
	LastHeartbeat time.Time
	MissedBeats   int
	mu            sync.Mutex // 保护心跳字段
	writeMu       sync.Mutex // 串行化连接写入，与心跳检查互不阻塞
}

// NewWSSession 创建会话
func NewWSSession(sessionID string, conn *websocket.Conn, clientIP string, now time.Time) *WSSession {
	return &WSSession{
		SessionID:     sessionID,
		Conn:          conn,
		ClientIP:      clientIP,
		ConnectedAt:   now,
		LastHeartbeat: now,
	}
}

// UpdateHeartbeat 更新心跳时间
func (s *WSSession) UpdateHeartbeat(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastHeartbeat = now
	s.MissedBeats = 0
}

// CheckHeartbeat 心跳超时则累计一次丢失，返回是否应该清理
func (s *WSSession) CheckHeartbeat(now time.Time, timeout time.Duration, maxMissed int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.LastHeartbeat) <= timeout {
		return false
	}
	s.MissedBeats++
	return s.MissedBeats >= maxMissed
}

// WriteMessage 向 WebSocket 写入消息（线程安全）
func (s *WSSession) WriteMessage(message interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.Conn.WriteJSON(message)
}

// Close 关闭连接
func (s *WSSession) Close() error {
	return s.Conn.Close()
}
