package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"audiovault/logger"

	"github.com/fsnotify/fsnotify"
)

// BlobWatcher 监听本地 blob 目录，发现带外删除时报告数据一致性异常
type BlobWatcher struct {
	watcher   *fsnotify.Watcher
	onRemoved func(key string)
}

// NewBlobWatcher starts watching dir. onRemoved may be nil.
func NewBlobWatcher(dir string, onRemoved func(key string)) (*BlobWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &BlobWatcher{watcher: w, onRemoved: onRemoved}, nil
}

// Run 阻塞直到 ctx 取消
func (b *BlobWatcher) Run(ctx context.Context) {
	defer b.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			key := filepath.Base(event.Name)
			if strings.HasPrefix(key, tempPrefix) {
				continue
			}
			logger.Debug("[BlobWatch] blob 被移除",
				logger.String("key", key),
				logger.String("op", event.Op.String()))
			if b.onRemoved != nil {
				b.onRemoved(key)
			}
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("[BlobWatch] 监听出错", logger.ErrorField(err))
		}
	}
}
