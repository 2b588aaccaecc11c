package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/petri/petri-go/internal/client"
	"go.uber.org/zap"
)

const (
	visionInstruction = "Describe clinically relevant visible details in 1-2 sentences."
	visionTemperature = 0.2
)

// ChatModel 文本/视觉推理能力
type ChatModel interface {
	Chat(ctx context.Context, messages []client.Message, temperature float64) (string, error)
}

// VisionService 图片观察：用视觉模型把图片描述成一两句临床观察
type VisionService struct {
	llm    ChatModel
	logger *zap.Logger
}

// NewVisionService 创建图片观察服务
func NewVisionService(llm ChatModel, logger *zap.Logger) *VisionService {
	return &VisionService{
		llm:    llm,
		logger: logger,
	}
}

// Observe 没有图片时返回空，不调用推理服务
func (s *VisionService) Observe(ctx context.Context, imageURL string) (string, error) {
	if strings.TrimSpace(imageURL) == "" {
		return "", nil
	}

	messages := []client.Message{
		{Role: client.RoleUser, Content: visionInstruction, ImageURL: imageURL},
	}

	text, err := s.llm.Chat(ctx, messages, visionTemperature)
	if err != nil {
		return "", fmt.Errorf("图片观察失败: %w", err)
	}

	observation := strings.TrimSpace(text)
	s.logger.Info("图片观察完成", zap.Int("length", len(observation)))
	return observation, nil
}
