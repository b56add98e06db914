package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"audiovault/logger"
)

const tempPrefix = ".upload-"

// LocalStore 本地磁盘 blob 存储，一个 key 对应目录下的一个文件
type LocalStore struct {
	dir string
}

// NewLocalStore creates the directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create blob dir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir 返回存储目录
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, key), nil
}

// Put 先写临时文件再 rename，读者永远看不到写了一半的 blob
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, _ string) (int64, error) {
	dst, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if _, err := os.Lstat(dst); err == nil {
		return 0, fmt.Errorf("%w: %s", ErrBlobExists, key)
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	written, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return written, fmt.Errorf("write blob %s: %w", key, err)
	}
	if size >= 0 && written != size {
		return written, fmt.Errorf("%w: declared %d, wrote %d", ErrSizeMismatch, size, written)
	}
	if err := tmp.Sync(); err != nil {
		return written, fmt.Errorf("sync blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return written, fmt.Errorf("close blob %s: %w", key, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return written, fmt.Errorf("commit blob %s: %w", key, err)
	}
	committed = true

	logger.Debug("[BlobStore] blob 已写入", logger.String("key", key), logger.Int64("size", written))
	return written, nil
}

// Get 打开区间读取流，调用方负责 Close
func (s *LocalStore) Get(_ context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("open blob %s: %w", key, err)
	}

	if offset == 0 && length < 0 {
		return f, nil
	}
	if length < 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("seek blob %s: %w", key, err)
		}
		return f, nil
	}
	return sectionReadCloser{Reader: io.NewSectionReader(f, offset, length), Closer: f}, nil
}

// Exists 检查 blob 是否存在
func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat blob %s: %w", key, err)
	}
	return info.Mode().IsRegular(), nil
}

// Size 返回 blob 字节数
func (s *LocalStore) Size(_ context.Context, key string) (int64, error) {
	p, err := s.path(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return 0, fmt.Errorf("stat blob %s: %w", key, err)
	}
	return info.Size(), nil
}

// Delete 删除 blob；正在读取的句柄不受影响
func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrBlobNotFound, key)
		}
		return fmt.Errorf("remove blob %s: %w", key, err)
	}
	return nil
}

// List 遍历目录下的 blob，忽略临时文件和子目录
func (s *LocalStore) List(ctx context.Context, fn func(BlobInfo) error) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read blob dir: %w", err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // 并发删除
		}
		if err := fn(BlobInfo{Key: e.Name(), Size: info.Size(), ModTime: info.ModTime()}); err != nil {
			return err
		}
	}
	return nil
}

// ctxReader 让长时间的写入能响应取消
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
