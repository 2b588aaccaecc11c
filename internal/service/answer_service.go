package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/petri/petri-go/internal/client"
	"github.com/petri/petri-go/internal/model"
	"go.uber.org/zap"
)

// FallbackAnswer 推理服务没有返回内容时的固定回答
const FallbackAnswer = "Sorry, I had trouble composing an answer. Please try again."

const answerTemperature = 0.6

const answerSystemPrompt = `You are Petri, a friendly pet-health helper.

Rules:
1. Be warm and brief: a few short sentences or a short list.
2. Give practical, actionable steps the owner can take now.
3. Be calibrated: never diagnose with certainty. Name the red flags that mean "see a vet now" when they apply.
4. Prefer the verified context. If the verified context does not cover the question, say plainly that this advice is general and not from verified records.
5. When a verified record was used, offer to share a trusted reference link.`

// ComposeInput 组装回答所需的全部输入
type ComposeInput struct {
	Message          string
	Species          string
	Hits             []model.KnowledgeRecord
	ImageObservation string
}

// AnswerService 回答组装服务
type AnswerService struct {
	llm    ChatModel
	logger *zap.Logger
}

// NewAnswerService 创建回答组装服务
func NewAnswerService(llm ChatModel, logger *zap.Logger) *AnswerService {
	return &AnswerService{
		llm:    llm,
		logger: logger,
	}
}

// Compose 生成最终回答；推理服务返回空内容时使用 FallbackAnswer
func (s *AnswerService) Compose(ctx context.Context, in ComposeInput) (model.ComposedAnswer, error) {
	messages := []client.Message{
		{Role: client.RoleSystem, Content: answerSystemPrompt},
		{Role: client.RoleUser, Content: BuildUserPrompt(in)},
	}

	text, err := s.llm.Chat(ctx, messages, answerTemperature)
	if err != nil {
		return model.ComposedAnswer{}, fmt.Errorf("生成回答失败: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.logger.Warn("推理服务返回空回答，使用兜底回复")
		text = FallbackAnswer
	}

	answer := model.ComposedAnswer{
		Text:               text,
		UsedKnowledgeBase:  len(in.Hits) > 0,
		KnowledgeRecordIDs: make([]int64, 0, len(in.Hits)),
		SourceURLs:         make([]string, 0, len(in.Hits)),
	}
	seen := make(map[string]struct{}, len(in.Hits))
	for _, hit := range in.Hits {
		answer.KnowledgeRecordIDs = append(answer.KnowledgeRecordIDs, hit.ID)
		if hit.SourceURL == "" {
			continue
		}
		if _, dup := seen[hit.SourceURL]; dup {
			continue
		}
		seen[hit.SourceURL] = struct{}{}
		answer.SourceURLs = append(answer.SourceURLs, hit.SourceURL)
	}

	s.logger.Info("回答已生成",
		zap.Bool("usedKb", answer.UsedKnowledgeBase),
		zap.Int64s("kbIds", answer.KnowledgeRecordIDs))
	return answer, nil
}

// BuildUserPrompt 依次拼接图片观察、用户消息、物种和知识上下文，空项省略
func BuildUserPrompt(in ComposeInput) string {
	parts := make([]string, 0, 4)
	if obs := strings.TrimSpace(in.ImageObservation); obs != "" {
		parts = append(parts, "Image observation: "+obs)
	}
	if msg := strings.TrimSpace(in.Message); msg != "" {
		parts = append(parts, "User message: "+msg)
	}
	if species := strings.TrimSpace(in.Species); species != "" {
		parts = append(parts, "Species: "+species)
	}
	parts = append(parts, "Verified context:\n"+BuildContext(in.Hits))
	return strings.Join(parts, "\n\n")
}
