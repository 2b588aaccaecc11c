package service

import (
	"context"
	"time"

	"github.com/petri/petri-go/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ImageObserver 图片观察
type ImageObserver interface {
	Observe(ctx context.Context, imageURL string) (string, error)
}

// KnowledgeRetriever 知识检索
type KnowledgeRetriever interface {
	Search(ctx context.Context, message, species string) ([]model.KnowledgeRecord, error)
}

// AnswerComposer 回答组装
type AnswerComposer interface {
	Compose(ctx context.Context, in ComposeInput) (model.ComposedAnswer, error)
}

// ChatOptions 流水线选项
type ChatOptions struct {
	CallTimeout time.Duration // 每个下游调用的超时时间
	Parallel    bool          // 图片观察与知识检索并行执行
}

// ChatService 问答流水线：图片观察 → 知识检索 → 回答组装
type ChatService struct {
	observer  ImageObserver
	retriever KnowledgeRetriever
	composer  AnswerComposer
	opts      ChatOptions
	logger    *zap.Logger
}

// NewChatService 创建问答服务
func NewChatService(observer ImageObserver, retriever KnowledgeRetriever, composer AnswerComposer, opts ChatOptions, logger *zap.Logger) *ChatService {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	return &ChatService{
		observer:  observer,
		retriever: retriever,
		composer:  composer,
		opts:      opts,
		logger:    logger,
	}
}

// Answer 处理一次问答，任何下游失败都会中止整个请求
func (s *ChatService) Answer(ctx context.Context, req model.ChatRequest) (model.ComposedAnswer, error) {
	s.logger.Info("处理问答请求",
		zap.String("species", req.Species),
		zap.Bool("hasImage", req.ImageURL != ""),
		zap.Int("messageLength", len(req.Message)))

	var (
		observation string
		hits        []model.KnowledgeRecord
		err         error
	)
	if s.opts.Parallel {
		observation, hits, err = s.gatherParallel(ctx, req)
	} else {
		observation, hits, err = s.gatherSequential(ctx, req)
	}
	if err != nil {
		return model.ComposedAnswer{}, err
	}

	var answer model.ComposedAnswer
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		answer, err = s.composer.Compose(ctx, ComposeInput{
			Message:          req.Message,
			Species:          req.Species,
			Hits:             hits,
			ImageObservation: observation,
		})
		return err
	})
	if err != nil {
		return model.ComposedAnswer{}, err
	}
	return answer, nil
}

func (s *ChatService) gatherSequential(ctx context.Context, req model.ChatRequest) (string, []model.KnowledgeRecord, error) {
	observation, err := s.observe(ctx, req.ImageURL)
	if err != nil {
		return "", nil, err
	}
	hits, err := s.retrieve(ctx, req)
	if err != nil {
		return "", nil, err
	}
	return observation, hits, nil
}

func (s *ChatService) gatherParallel(ctx context.Context, req model.ChatRequest) (string, []model.KnowledgeRecord, error) {
	var (
		observation string
		hits        []model.KnowledgeRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		observation, err = s.observe(gctx, req.ImageURL)
		return err
	})
	g.Go(func() error {
		var err error
		hits, err = s.retrieve(gctx, req)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", nil, err
	}
	return observation, hits, nil
}

// observe 没有图片地址时跳过观察
func (s *ChatService) observe(ctx context.Context, imageURL string) (string, error) {
	if imageURL == "" {
		return "", nil
	}
	var observation string
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		observation, err = s.observer.Observe(ctx, imageURL)
		return err
	})
	return observation, err
}

func (s *ChatService) retrieve(ctx context.Context, req model.ChatRequest) ([]model.KnowledgeRecord, error) {
	var hits []model.KnowledgeRecord
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		hits, err = s.retriever.Search(ctx, req.Message, req.Species)
		return err
	})
	return hits, err
}

// withTimeout 给单个下游调用加超时，超时按流水线失败处理
func (s *ChatService) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	return callWithTimeout(ctx, s.opts.CallTimeout, fn)
}
