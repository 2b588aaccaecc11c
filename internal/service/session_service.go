package service

import (
	"context"
	"sync"
	"time"

	"github.com/petri/petri-go/internal/model"
	"go.uber.org/zap"
)

const (
	heartbeatInterval = 30 * time.Second
	heartbeatTimeout  = 60 * time.Second
	maxMissedBeats    = 3
)

// SessionService WebSocket 会话管理
type SessionService struct {
	sessions map[string]*model.WSSession
	mu       sync.RWMutex
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionService 创建会话管理服务
func NewSessionService(logger *zap.Logger) *SessionService {
	return &SessionService{
		sessions: make(map[string]*model.WSSession),
		logger:   logger,
		now:      time.Now,
	}
}

// Register 注册会话
func (s *SessionService) Register(session *model.WSSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.SessionID] = session
	s.logger.Info("会话注册成功",
		zap.String("sessionId", session.SessionID),
		zap.String("clientIp", session.ClientIP))
}

// Remove 移除会话
func (s *SessionService) Remove(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; ok {
		delete(s.sessions, sessionID)
		s.logger.Info("会话已移除", zap.String("sessionId", sessionID))
	}
}

// Touch 更新心跳时间
func (s *SessionService) Touch(sessionID string) bool {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return false
	}
	session.UpdateHeartbeat(s.now())
	return true
}

// Count 在线会话数
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run 定期清理心跳丢失的会话，直到 ctx 结束
func (s *SessionService) Run(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep 心跳连续丢失 maxMissedBeats 次的会话会被关闭并移除。
// 心跳检查和关闭连接都不持有 s.mu
func (s *SessionService) sweep() int {
	s.mu.RLock()
	snapshot := make([]*model.WSSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		snapshot = append(snapshot, session)
	}
	s.mu.RUnlock()

	now := s.now()
	var stale []*model.WSSession
	for _, session := range snapshot {
		if session.CheckHeartbeat(now, heartbeatTimeout, maxMissedBeats) {
			stale = append(stale, session)
		}
	}
	if len(stale) == 0 {
		return 0
	}

	removed := make([]*model.WSSession, 0, len(stale))
	s.mu.Lock()
	for _, session := range stale {
		// 检查期间连接可能已断开并重新注册
		if s.sessions[session.SessionID] != session {
			continue
		}
		delete(s.sessions, session.SessionID)
		removed = append(removed, session)
	}
	s.mu.Unlock()

	for _, session := range removed {
		s.logger.Info("清理无效会话", zap.String("sessionId", session.SessionID))
		if session.Conn != nil {
			_ = session.Close()
		}
	}
	return len(removed)
}
