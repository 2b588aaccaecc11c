package knowledgestore

import (
	"context"

	"github.com/petri/petri-go/internal/model"
)

// Query 知识库查询条件：species 精确匹配，Text 在问题或答案中不区分大小写的子串匹配
type Query struct {
	Species string
	Text    string
	Limit   int
}

// Store 知识库存储
type Store interface {
	Search(ctx context.Context, q Query) ([]model.KnowledgeRecord, error)
}
