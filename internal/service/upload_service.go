package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/petri/petri-go/internal/model"
	"github.com/petri/petri-go/internal/storage"
	"go.uber.org/zap"
)

const (
	uploadPrefix     = "uploads/"
	defaultExtension = "jpg"
	defaultMIMEType  = "application/octet-stream"
)

// UploadInput 待上传的文件
type UploadInput struct {
	Filename    string
	ContentType string
	Body        []byte
}

// UploadService 图片上传：存入对象存储并返回限时签名地址
type UploadService struct {
	store       storage.BlobStore
	ttl         time.Duration
	callTimeout time.Duration
	logger      *zap.Logger
	now         func() time.Time
	token       func() string
}

// NewUploadService 创建上传服务，callTimeout 限制每次存储调用的耗时
func NewUploadService(store storage.BlobStore, ttl, callTimeout time.Duration, logger *zap.Logger) *UploadService {
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &UploadService{
		store:       store,
		ttl:         ttl,
		callTimeout: callTimeout,
		logger:      logger,
		now:         time.Now,
		token:       randomToken,
	}
}

// Store 上传文件并签名。路径冲突时换一个新路径重试一次，其余存储错误直接返回
func (s *UploadService) Store(ctx context.Context, in UploadInput) (model.UploadedAsset, error) {
	contentType := in.ContentType
	if contentType == "" {
		contentType = defaultMIMEType
	}

	objectPath := s.newPath(in.Filename)
	err := s.put(ctx, objectPath, in.Body, contentType)
	if errors.Is(err, storage.ErrObjectExists) {
		s.logger.Warn("存储路径冲突，重新生成路径", zap.String("path", objectPath))
		objectPath = s.newPath(in.Filename)
		err = s.put(ctx, objectPath, in.Body, contentType)
	}
	if err != nil {
		return model.UploadedAsset{}, fmt.Errorf("上传失败: %w", err)
	}

	var signedURL string
	err = callWithTimeout(ctx, s.callTimeout, func(ctx context.Context) error {
		var err error
		signedURL, err = s.store.SignedURL(ctx, objectPath, s.ttl)
		return err
	})
	if err != nil {
		return model.UploadedAsset{}, fmt.Errorf("签名失败: %w", err)
	}

	s.logger.Info("图片上传完成",
		zap.String("path", objectPath),
		zap.String("contentType", contentType),
		zap.Int("size", len(in.Body)))

	return model.UploadedAsset{
		Path:             objectPath,
		SignedURL:        signedURL,
		ExpiresInSeconds: int(s.ttl / time.Second),
	}, nil
}

func (s *UploadService) put(ctx context.Context, objectPath string, body []byte, contentType string) error {
	return callWithTimeout(ctx, s.callTimeout, func(ctx context.Context) error {
		return s.store.Put(ctx, objectPath, body, contentType)
	})
}

// newPath uploads/<纳秒时间戳>-<随机串>.<扩展名>
func (s *UploadService) newPath(filename string) string {
	return fmt.Sprintf("%s%d-%s.%s", uploadPrefix, s.now().UnixNano(), s.token(), FileExtension(filename))
}

// FileExtension 小写扩展名，没有时默认 jpg
func FileExtension(filename string) string {
	ext := strings.TrimPrefix(path.Ext(strings.TrimSpace(filename)), ".")
	if ext == "" {
		return defaultExtension
	}
	return strings.ToLower(ext)
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
