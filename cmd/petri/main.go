package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petri/petri-go/internal/client"
	"github.com/petri/petri-go/internal/config"
	"github.com/petri/petri-go/internal/handler"
	"github.com/petri/petri-go/internal/knowledgestore"
	"github.com/petri/petri-go/internal/router"
	"github.com/petri/petri-go/internal/service"
	"github.com/petri/petri-go/internal/storage"
	"github.com/petri/petri-go/pkg/logger"
	"github.com/petri/petri-go/pkg/redis"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/petri.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 初始化日志
	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zapLogger.Sync()

	if err := cfg.Validate(); err != nil {
		zapLogger.Fatal("配置不完整", zap.Error(err))
	}

	zapLogger.Info("petri 服务启动中...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 推理客户端（文本与视觉共用）
	llmClient, err := client.NewLLMClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("初始化推理客户端失败", zap.Error(err))
	}

	// 知识库
	store, cleanup, err := newKnowledgeStore(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("初始化知识库失败", zap.Error(err))
	}
	defer cleanup()

	// 对象存储
	blobStore, err := storage.NewS3Store(ctx, cfg.Storage, zapLogger)
	if err != nil {
		zapLogger.Fatal("初始化对象存储失败", zap.Error(err))
	}

	// 初始化服务
	chatService := service.NewChatService(
		service.NewVisionService(llmClient, zapLogger),
		service.NewKnowledgeService(store, cfg.Knowledge.DefaultSpecies, cfg.Knowledge.Limit, zapLogger),
		service.NewAnswerService(llmClient, zapLogger),
		service.ChatOptions{CallTimeout: cfg.Chat.CallTimeout, Parallel: cfg.Chat.Parallel},
		zapLogger,
	)
	uploadService := service.NewUploadService(blobStore, cfg.Storage.SignedURLTTL, cfg.Storage.CallTimeout, zapLogger)
	sessionService := service.NewSessionService(zapLogger)
	go sessionService.Run(ctx)

	// 初始化路由
	r := router.NewRouter(router.Handlers{
		Chat:      handler.NewChatHandler(chatService, zapLogger),
		Upload:    handler.NewUploadHandler(uploadService, cfg.Storage.MaxUploadBytes, zapLogger),
		WebSocket: handler.NewWebSocketHandler(sessionService, chatService, zapLogger),
		API:       handler.NewAPIHandler(cfg.Server.Name, sessionService, zapLogger),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("服务关闭失败", zap.Error(err))
		}
	}()

	zapLogger.Info("petri 服务启动成功",
		zap.Int("port", cfg.Server.Port),
		zap.String("model", cfg.OpenAI.Model),
		zap.String("bucket", cfg.Storage.Bucket),
		zap.Bool("parallel", cfg.Chat.Parallel))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zapLogger.Fatal("服务启动失败", zap.Error(err))
	}
	zapLogger.Info("petri 服务已停止")
}

// newKnowledgeStore 配置了 DSN 时使用 Postgres，否则使用内置知识库；配置了 Redis 时加一层缓存
func newKnowledgeStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (knowledgestore.Store, func(), error) {
	var (
		store   knowledgestore.Store
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Knowledge.DSN != "" {
		db, err := knowledgestore.OpenPostgres(cfg.Knowledge.DSN)
		if err != nil {
			return nil, cleanup, err
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, func() { _ = sqlDB.Close() })
		}
		store = knowledgestore.NewPostgresStore(db, cfg.Knowledge.Table, logger)
		logger.Info("使用 Postgres 知识库", zap.String("table", cfg.Knowledge.Table))
	} else {
		memory := knowledgestore.NewMemoryStore(logger)
		if err := memory.AddBatch(knowledgestore.DefaultRecords()); err != nil {
			return nil, cleanup, err
		}
		store = memory
		logger.Warn("未配置 KNOWLEDGE_DB_DSN，使用内置知识库", zap.Int("records", memory.Count()))
	}

	if cfg.Redis.Enabled() {
		rdb, err := redis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("Redis 不可用，知识库不启用缓存", zap.Error(err))
			return store, cleanup, nil
		}
		closers = append(closers, func() { _ = rdb.Close() })
		store = knowledgestore.NewCachedStore(store, rdb, cfg.Redis.CacheTTL, logger)
		logger.Info("知识库缓存已启用", zap.Duration("ttl", cfg.Redis.CacheTTL))
	}

	return store, cleanup, nil
}
