package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"audiovault/config"
	"audiovault/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore 基于 MinIO / S3 的 blob 存储
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStore 初始化 MinIO 客户端，存储桶不存在时自动创建
func NewMinioStore(ctx context.Context, cfg *config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("[MinIO] 成功创建存储桶", logger.String("bucket", cfg.MinioBucket))
	}

	logger.Info("[MinIO] 客户端初始化成功",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))

	return &MinioStore{client: client, bucket: cfg.MinioBucket, prefix: cfg.MinioPrefix}, nil
}

func (s *MinioStore) object(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return s.prefix + key, nil
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// Put 上传对象，size < 0 时由 SDK 分片上传
func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error) {
	obj, err := s.object(key)
	if err != nil {
		return 0, err
	}
	info, err := s.client.PutObject(ctx, s.bucket, obj, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return 0, fmt.Errorf("上传对象 %s 失败: %w", key, err)
	}
	if size >= 0 && info.Size != size {
		return info.Size, fmt.Errorf("%w: declared %d, wrote %d", ErrSizeMismatch, size, info.Size)
	}
	return info.Size, nil
}

// Get 打开对象的区间读取流，数据在 Read 时才真正拉取
func (s *MinioStore) Get(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	obj, err := s.object(key)
	if err != nil {
		return nil, err
	}

	opts := minio.GetObjectOptions{}
	switch {
	case length > 0:
		// SetRange 的边界是闭区间
		err = opts.SetRange(offset, offset+length-1)
	case offset > 0:
		err = opts.SetRange(offset, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("设置读取区间失败: %w", err)
	}

	object, err := s.client.GetObject(ctx, s.bucket, obj, opts)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("读取对象 %s 失败: %w", key, err)
	}
	return object, nil
}

func (s *MinioStore) stat(ctx context.Context, key string) (minio.ObjectInfo, error) {
	obj, err := s.object(key)
	if err != nil {
		return minio.ObjectInfo{}, err
	}
	info, err := s.client.StatObject(ctx, s.bucket, obj, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return minio.ObjectInfo{}, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return minio.ObjectInfo{}, fmt.Errorf("获取对象 %s 信息失败: %w", key, err)
	}
	return info, nil
}

// Exists 检查对象是否存在
func (s *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.stat(ctx, key)
	if err != nil {
		if errorsIsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Size 返回对象大小
func (s *MinioStore) Size(ctx context.Context, key string) (int64, error) {
	info, err := s.stat(ctx, key)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// Delete 删除对象；S3 语义下删除不存在的对象不报错，所以先 Stat
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if _, err := s.stat(ctx, key); err != nil {
		return err
	}
	obj, _ := s.object(key)
	if err := s.client.RemoveObject(ctx, s.bucket, obj, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", key, err)
	}
	return nil
}

// List 递归列出前缀下的所有对象
func (s *MinioStore) List(ctx context.Context, fn func(BlobInfo) error) error {
	// 提前返回时取消 ctx，让 SDK 的列举 goroutine 退出
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		info := BlobInfo{
			Key:     strings.TrimPrefix(object.Key, s.prefix),
			Size:    object.Size,
			ModTime: object.LastModified,
		}
		if err := fn(info); err != nil {
			return err
		}
	}
	return nil
}
