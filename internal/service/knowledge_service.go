package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/petri/petri-go/internal/knowledgestore"
	"github.com/petri/petri-go/internal/model"
	"go.uber.org/zap"
)

// MaxKnowledgeHits 单次问答最多使用的知识条目数
const MaxKnowledgeHits = 3

// NoMatchesContext 没有命中知识库时的上下文标记
const NoMatchesContext = "No verified matches found."

// KnowledgeService 知识库检索服务（关键词子串匹配，不做语义检索）
type KnowledgeService struct {
	store          knowledgestore.Store
	defaultSpecies string
	limit          int
	logger         *zap.Logger
}

// NewKnowledgeService 创建知识库检索服务
func NewKnowledgeService(store knowledgestore.Store, defaultSpecies string, limit int, logger *zap.Logger) *KnowledgeService {
	if limit <= 0 || limit > MaxKnowledgeHits {
		limit = MaxKnowledgeHits
	}
	return &KnowledgeService{
		store:          store,
		defaultSpecies: defaultSpecies,
		limit:          limit,
		logger:         logger,
	}
}

// Search 检索知识：species 为空时使用默认物种，message 为空也允许
func (s *KnowledgeService) Search(ctx context.Context, message, species string) ([]model.KnowledgeRecord, error) {
	if strings.TrimSpace(species) == "" {
		species = s.defaultSpecies
	}

	s.logger.Info("检索知识",
		zap.String("species", species),
		zap.Int("limit", s.limit))

	records, err := s.store.Search(ctx, knowledgestore.Query{
		Species: species,
		Text:    message,
		Limit:   s.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("知识检索失败: %w", err)
	}
	if len(records) > s.limit {
		records = records[:s.limit]
	}

	s.logger.Info("检索完成", zap.Int("results", len(records)))
	return records, nil
}

// BuildContext 按检索顺序编号拼接问答；没有命中时返回 NoMatchesContext
func BuildContext(records []model.KnowledgeRecord) string {
	if len(records) == 0 {
		return NoMatchesContext
	}

	var builder strings.Builder
	for i, r := range records {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(fmt.Sprintf("%d. Q: %s\n   A: %s", i+1, r.Question, r.Answer))
	}
	return builder.String()
}
