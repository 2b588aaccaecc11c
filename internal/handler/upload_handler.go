package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/petri/petri-go/internal/model"
	"github.com/petri/petri-go/internal/service"
	"go.uber.org/zap"
)

const (
	// maxFieldBytes 普通表单字段的长度上限
	maxFieldBytes = 4 << 10
	// formOverheadBytes multipart 边界与字段占用的额外字节
	formOverheadBytes = 1 << 20
)

var (
	ErrNoFile       = errors.New("no file uploaded")
	ErrFileTooLarge = errors.New("file too large")
)

// AssetUploader 图片上传
type AssetUploader interface {
	Store(ctx context.Context, in service.UploadInput) (model.UploadedAsset, error)
}

// UploadHandler /upload 处理器
type UploadHandler struct {
	uploader AssetUploader
	maxBytes int64
	logger   *zap.Logger
}

// NewUploadHandler 创建上传处理器，maxBytes 为单个文件的大小上限
func NewUploadHandler(uploader AssetUploader, maxBytes int64, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		uploader: uploader,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Upload 接收 multipart 上传，第一个文件字段为图片，其余字段只记录日志
func (h *UploadHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+formOverheadBytes)

	in, fields, err := h.readForm(c.Request)
	switch {
	case errors.Is(err, ErrNoFile):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "No file uploaded"})
		return
	case errors.Is(err, ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{Error: "File too large"})
		return
	case err != nil:
		h.logger.Error("读取上传内容失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Upload failed", Detail: err.Error()})
		return
	}

	h.logger.Info("收到上传",
		zap.String("filename", in.Filename),
		zap.String("contentType", in.ContentType),
		zap.Int("size", len(in.Body)),
		zap.Any("fields", fields))

	asset, err := h.uploader.Store(c.Request.Context(), in)
	if err != nil {
		h.logger.Error("上传失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Upload failed", Detail: err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.UploadResponse{
		OK:       true,
		ImageURL: asset.SignedURL,
		Path:     asset.Path,
	})
}

// readForm 逐个读取 multipart 分段，不把整个表单落盘
func (h *UploadHandler) readForm(r *http.Request) (service.UploadInput, map[string]string, error) {
	var (
		in     service.UploadInput
		found  bool
		fields = make(map[string]string)
	)

	reader, err := r.MultipartReader()
	if err != nil {
		return in, fields, ErrNoFile
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return in, fields, classifyReadError(err)
		}

		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
			part.Close()
			if err != nil {
				return in, fields, classifyReadError(err)
			}
			fields[part.FormName()] = string(value)
			continue
		}

		if found {
			_, err := io.Copy(io.Discard, part)
			part.Close()
			if err != nil {
				return in, fields, classifyReadError(err)
			}
			continue
		}

		body, err := io.ReadAll(io.LimitReader(part, h.maxBytes+1))
		part.Close()
		if err != nil {
			return in, fields, classifyReadError(err)
		}
		if int64(len(body)) > h.maxBytes {
			return in, fields, ErrFileTooLarge
		}

		in = service.UploadInput{
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Body:        body,
		}
		found = true
	}

	if !found {
		return in, fields, ErrNoFile
	}
	return in, fields, nil
}

func classifyReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return ErrFileTooLarge
	}
	return fmt.Errorf("读取表单失败: %w", err)
}
