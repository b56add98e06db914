package audio

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"
	"unicode/utf8"

	"audiovault/logger"
	"audiovault/model"
	"audiovault/repository"
	"audiovault/storage"

	"github.com/google/uuid"
)

const maxOriginalNameLen = 255

// UploadInput 一次上传的输入
type UploadInput struct {
	File        io.Reader // nil 表示没有文件
	Filename    string
	ContentType string // 客户端声明的类型
	Size        int64  // 未知时为 -1
	Description string
	Category    string
}

// Uploader 校验上传、写入 blob、再创建记录
type Uploader struct {
	repo     repository.AudioRepository
	blobs    storage.BlobStore
	allowed  map[string]bool
	maxBytes int64
	newKey   func(originalName, mimeType string) string
	now      func() time.Time
}

// NewUploader creates an Uploader accepting allowedTypes up to maxBytes (0 = no limit).
func NewUploader(repo repository.AudioRepository, blobs storage.BlobStore, allowedTypes []string, maxBytes int64) *Uploader {
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Uploader{
		repo:     repo,
		blobs:    blobs,
		allowed:  allowed,
		maxBytes: maxBytes,
		newKey:   storage.NewStorageKey,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// MaxBytes 单个文件大小上限
func (u *Uploader) MaxBytes() int64 {
	return u.maxBytes
}

// normalizeMediaType 去掉参数并转小写，解析失败返回空串
func normalizeMediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

func displayName(filename, fallback string) string {
	name := strings.TrimSpace(filename)
	if name == "" {
		return fallback
	}
	if len(name) > maxOriginalNameLen {
		name = name[:maxOriginalNameLen]
		for !utf8.ValidString(name) {
			name = name[:len(name)-1]
		}
	}
	return name
}

// Upload 写入 blob 成功后才创建记录，blob 写失败不会留下孤儿记录
func (u *Uploader) Upload(ctx context.Context, owner model.Identity, in UploadInput) (*model.Audio, error) {
	if in.File == nil {
		return nil, badRequest("No file uploaded")
	}

	mimeType := normalizeMediaType(in.ContentType)
	if !u.allowed[mimeType] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, in.ContentType)
	}

	description := strings.TrimSpace(in.Description)
	category := strings.TrimSpace(in.Category)
	if description == "" || category == "" {
		return nil, badRequest("description and category are required")
	}
	if u.maxBytes > 0 && in.Size > u.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, in.Size, u.maxBytes)
	}

	key := u.newKey(in.Filename, mimeType)
	r := in.File
	if u.maxBytes > 0 && in.Size < 0 {
		r = io.LimitReader(r, u.maxBytes+1)
	}

	written, err := u.blobs.Put(ctx, key, r, in.Size, mimeType)
	if err != nil {
		logger.Error("[Upload] 写入 blob 失败",
			logger.Owner(owner.UserID),
			logger.String("storageKey", key),
			logger.ErrorField(err))
		return nil, fmt.Errorf("store blob: %w", err)
	}
	if u.maxBytes > 0 && written > u.maxBytes {
		if err := u.blobs.Delete(ctx, key); err != nil {
			logger.Warn("[Upload] 清理超限 blob 失败", logger.String("storageKey", key), logger.ErrorField(err))
		}
		return nil, fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, u.maxBytes)
	}

	audio := &model.Audio{
		ID:           uuid.NewString(),
		UserID:       owner.UserID,
		OriginalName: displayName(in.Filename, key),
		Description:  description,
		Category:     category,
		StorageKey:   key,
		MimeType:     mimeType,
		CreatedAt:    u.now(),
	}
	audio.UpdatedAt = audio.CreatedAt

	if err := u.repo.Create(ctx, audio); err != nil {
		// blob 保留为孤儿数据，由带外清理处理
		logger.Error("[Upload] 创建记录失败，blob 已写入",
			logger.Owner(owner.UserID),
			logger.String("storageKey", key),
			logger.ErrorField(err))
		return nil, fmt.Errorf("create audio record: %w", err)
	}

	logger.Info("[Upload] 上传成功",
		logger.Owner(owner.UserID),
		logger.AudioID(audio.ID),
		logger.String("mimeType", mimeType),
		logger.Int64("size", written))
	return audio, nil
}
