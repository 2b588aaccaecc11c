package knowledgestore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/petri/petri-go/internal/model"
	"go.uber.org/zap"
)

// MemoryStore 内存知识库，按插入顺序返回匹配结果
type MemoryStore struct {
	records []model.KnowledgeRecord
	ids     map[int64]struct{}
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMemoryStore 创建内存知识库
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		ids:    make(map[int64]struct{}),
		logger: logger,
	}
}

// Add 添加知识条目
func (s *MemoryStore) Add(record model.KnowledgeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == 0 {
		return fmt.Errorf("knowledge record ID cannot be empty")
	}
	if _, exists := s.ids[record.ID]; exists {
		return fmt.Errorf("knowledge record already exists: %d", record.ID)
	}

	s.records = append(s.records, record)
	s.ids[record.ID] = struct{}{}
	s.logger.Debug("知识条目已添加", zap.Int64("id", record.ID), zap.String("species", record.Species))
	return nil
}

// AddBatch 批量添加知识条目
func (s *MemoryStore) AddBatch(records []model.KnowledgeRecord) error {
	for _, r := range records {
		if err := s.Add(r); err != nil {
			return err
		}
	}
	return nil
}

// Search 子串检索
func (s *MemoryStore) Search(ctx context.Context, q Query) ([]model.KnowledgeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(q.Text)
	results := make([]model.KnowledgeRecord, 0, q.Limit)
	for _, r := range s.records {
		if q.Limit > 0 && len(results) >= q.Limit {
			break
		}
		if r.Species != q.Species {
			continue
		}
		if strings.Contains(strings.ToLower(r.Question), needle) ||
			strings.Contains(strings.ToLower(r.Answer), needle) {
			results = append(results, r)
		}
	}

	s.logger.Debug("内存知识库检索完成",
		zap.String("species", q.Species),
		zap.Int("resultCount", len(results)))
	return results, nil
}

// Count 获取条目数量
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// DefaultRecords 没有外部知识库时使用的内置条目
func DefaultRecords() []model.KnowledgeRecord {
	return []model.KnowledgeRecord{
		{
			ID:       1,
			Question: "My dog is limping after a walk",
			Answer:   "Rest for 24-48 hours, check the paw pads and between the toes for cuts or thorns. See a vet if the dog will not bear weight, the leg is swollen, or limping lasts more than two days.",
			Species:  "dog",
			Tags:     []string{"limping", "paw", "injury"},
		},
		{
			ID:       2,
			Question: "My dog ate chocolate",
			Answer:   "Chocolate is toxic to dogs. Note the type and amount eaten and call your vet or a pet poison hotline right away, even if the dog seems fine.",
			Species:  "dog",
			Tags:     []string{"toxin", "chocolate", "emergency"},
		},
		{
			ID:       3,
			Question: "My dog is vomiting",
			Answer:   "Withhold food for a few hours but keep small amounts of water available. Seek care if vomiting repeats, contains blood, or comes with lethargy or a swollen belly.",
			Species:  "dog",
			Tags:     []string{"vomiting", "stomach"},
		},
		{
			ID:       4,
			Question: "My cat is not using the litter box",
			Answer:   "Check the box is clean and in a quiet spot. Straining or frequent trips with little urine, especially in male cats, can be a urinary blockage and needs a vet the same day.",
			Species:  "cat",
			Tags:     []string{"litter", "urinary"},
		},
		{
			ID:       5,
			Question: "My cat is vomiting hairballs",
			Answer:   "Occasional hairballs are common. Regular brushing helps. Frequent vomiting, appetite loss or constipation should be checked by a vet.",
			Species:  "cat",
			Tags:     []string{"vomiting", "hairball"},
		},
		{
			ID:       6,
			Question: "My cat ate a lily",
			Answer:   "All parts of lilies are highly toxic to cats and can cause kidney failure. Go to a vet immediately.",
			Species:  "cat",
			Tags:     []string{"toxin", "lily", "emergency"},
		},
	}
}
