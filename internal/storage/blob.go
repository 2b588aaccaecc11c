package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrObjectExists 目标路径已存在对象（不允许覆盖）
	ErrObjectExists = errors.New("storage object already exists")
)

// BlobStore 对象存储
type BlobStore interface {
	// Put 上传对象，路径已存在时返回 ErrObjectExists
	Put(ctx context.Context, path string, body []byte, contentType string) error
	// SignedURL 生成限时访问地址
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}
