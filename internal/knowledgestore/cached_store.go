package knowledgestore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/petri/petri-go/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "petri:kb:"

// CachedStore 用 Redis 缓存检索结果，缓存不可用时直接查询下层存储
type CachedStore struct {
	inner  Store
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedStore 创建带缓存的知识库
func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedStore {
	return &CachedStore{
		inner:  inner,
		redis:  client,
		ttl:    ttl,
		logger: logger,
	}
}

// Search 先查缓存，未命中再查下层存储并回写
func (s *CachedStore) Search(ctx context.Context, q Query) ([]model.KnowledgeRecord, error) {
	key := cacheKey(q)

	cached, err := s.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var records []model.KnowledgeRecord
		if jsonErr := json.Unmarshal(cached, &records); jsonErr == nil {
			s.logger.Debug("知识库缓存命中", zap.String("key", key))
			return records, nil
		}
		s.logger.Warn("知识库缓存内容损坏", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		s.logger.Warn("读取知识库缓存失败", zap.Error(err))
	}

	records, err := s.inner.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(records)
	if err == nil {
		if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Warn("写入知识库缓存失败", zap.Error(err))
		}
	}
	return records, nil
}

func cacheKey(q Query) string {
	sum := sha1.Sum([]byte(strings.ToLower(q.Text)))
	return fmt.Sprintf("%s%s:%d:%s", cacheKeyPrefix, q.Species, q.Limit, hex.EncodeToString(sum[:]))
}
