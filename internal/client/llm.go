package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message 消息，ImageURL 非空时作为图片附在文本之后
type Message struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// LLMClient OpenAI 兼容的推理客户端，同时用于文本与视觉
type LLMClient struct {
	model  string
	llm    llms.Model
	logger *zap.Logger
}

// NewLLMClient 创建推理客户端，baseURL 为空时使用官方地址
func NewLLMClient(apiKey, model, baseURL string, logger *zap.Logger) (*LLMClient, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("创建推理客户端失败: %w", err)
	}
	return NewLLMClientWithModel(llm, model, logger), nil
}

// NewLLMClientWithModel 使用已有的 langchaingo 模型创建客户端
func NewLLMClientWithModel(llm llms.Model, model string, logger *zap.Logger) *LLMClient {
	return &LLMClient{
		model:  model,
		llm:    llm,
		logger: logger,
	}
}

// Chat 调用聊天接口，返回生成的文本（可能为空）
func (c *LLMClient) Chat(ctx context.Context, messages []Message, temperature float64) (string, error) {
	contents := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		contents = append(contents, toMessageContent(m))
	}

	resp, err := c.llm.GenerateContent(ctx, contents, llms.WithTemperature(temperature))
	if err != nil {
		if errors.Is(err, openai.ErrEmptyResponse) {
			c.logger.Warn("推理服务返回空结果", zap.String("model", c.model))
			return "", nil
		}
		return "", fmt.Errorf("推理请求失败: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", nil
	}

	text := resp.Choices[0].Content
	c.logger.Debug("推理完成",
		zap.String("model", c.model),
		zap.Int("messages", len(messages)),
		zap.Int("length", len(text)))
	return text, nil
}

func toMessageContent(m Message) llms.MessageContent {
	parts := make([]llms.ContentPart, 0, 2)
	if strings.TrimSpace(m.Content) != "" {
		parts = append(parts, llms.TextContent{Text: m.Content})
	}
	if m.ImageURL != "" {
		parts = append(parts, llms.ImageURLContent{URL: m.ImageURL})
	}
	return llms.MessageContent{
		Role:  toChatMessageType(m.Role),
		Parts: parts,
	}
}

func toChatMessageType(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
