package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrBlobNotFound is returned when no payload exists under the key.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrBlobExists is returned by Put when the key is already taken.
	ErrBlobExists = errors.New("blob already exists")
	// ErrInvalidKey is returned for keys that could escape the store namespace.
	ErrInvalidKey = errors.New("invalid storage key")
	// ErrSizeMismatch is returned by Put when fewer or more bytes than declared were written.
	ErrSizeMismatch = errors.New("blob size mismatch")
)

// BlobStore 二进制负载存储，按服务端生成的 key 寻址
type BlobStore interface {
	// Put 写入新的 blob，size < 0 表示未知长度；返回实际写入字节数
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	// Get 打开 [offset, offset+length) 区间的读取流，length < 0 表示读到末尾
	Get(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Size(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// BlobInfo 单个 blob 的基本信息
type BlobInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Lister is implemented by stores that can enumerate their blobs.
type Lister interface {
	List(ctx context.Context, fn func(BlobInfo) error) error
}

// Stats 存储统计信息
type Stats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// CollectStats 遍历存储并汇总统计
func CollectStats(ctx context.Context, l Lister) (*Stats, error) {
	stats := &Stats{}
	err := l.List(ctx, func(info BlobInfo) error {
		stats.TotalObjects++
		stats.TotalSize += info.Size
		if info.ModTime.After(stats.LastModified) {
			stats.LastModified = info.ModTime
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateKey rejects keys with path separators, dot-dot segments or odd characters.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// sectionReadCloser 只读取底层文件的一个区间，关闭时关闭文件
type sectionReadCloser struct {
	io.Reader
	io.Closer
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, ErrBlobNotFound)
}
