package knowledgestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/petri/petri-go/internal/model"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// knowledgeRow 知识库表结构
type knowledgeRow struct {
	ID        int64          `gorm:"column:id;primaryKey"`
	Question  string         `gorm:"column:question"`
	Answer    string         `gorm:"column:answer"`
	Species   string         `gorm:"column:species"`
	Tags      pq.StringArray `gorm:"column:tags;type:text[]"`
	SourceURL *string        `gorm:"column:source_url"`
}

func (r knowledgeRow) toRecord() model.KnowledgeRecord {
	rec := model.KnowledgeRecord{
		ID:       r.ID,
		Question: r.Question,
		Answer:   r.Answer,
		Species:  r.Species,
		Tags:     []string(r.Tags),
	}
	if r.SourceURL != nil {
		rec.SourceURL = *r.SourceURL
	}
	return rec
}

// PostgresStore 基于 Postgres（Supabase 数据库）的知识库
type PostgresStore struct {
	db     *gorm.DB
	table  string
	logger *zap.Logger
}

// OpenPostgres 通过 DSN 打开数据库连接
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("连接知识库失败: %w", err)
	}
	return db, nil
}

// NewPostgresStore 创建 Postgres 知识库
func NewPostgresStore(db *gorm.DB, table string, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		table:  table,
		logger: logger,
	}
}

// Search species = ? AND (question ILIKE %text% OR answer ILIKE %text%)，不排序，沿用存储顺序
func (s *PostgresStore) Search(ctx context.Context, q Query) ([]model.KnowledgeRecord, error) {
	pattern := "%" + escapeLike(q.Text) + "%"

	var rows []knowledgeRow
	query := s.db.WithContext(ctx).
		Table(s.table).
		Where("species = ?", q.Species).
		Where("question ILIKE ? OR answer ILIKE ?", pattern, pattern)
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询知识库失败: %w", err)
	}

	records := make([]model.KnowledgeRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toRecord())
	}

	s.logger.Debug("知识库检索完成",
		zap.String("species", q.Species),
		zap.Int("resultCount", len(records)))
	return records, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike 让用户输入中的 % 和 _ 按字面匹配
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
