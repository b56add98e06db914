package storage

import (
	"context"
	"fmt"

	"audiovault/config"
	"audiovault/logger"
)

// Store 可枚举的 blob 存储
type Store interface {
	BlobStore
	Lister
}

// Open 按 BLOB_BACKEND 选择存储后端
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendLocal, "":
		s, err := NewLocalStore(cfg.AudioUploadDir)
		if err != nil {
			return nil, err
		}
		logger.Info("[BlobStore] 使用本地存储", logger.String("dir", s.Dir()))
		return s, nil
	case config.BlobBackendMinio:
		return NewMinioStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}
