package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"audiovault/logger"
	"audiovault/model"
	"audiovault/repository"
	"audiovault/storage"

	"github.com/google/uuid"
)

// Library 按所有者限定的音频读写、删除和流式读取
type Library struct {
	repo  repository.AudioRepository
	blobs storage.BlobStore
}

// NewLibrary creates a Library.
func NewLibrary(repo repository.AudioRepository, blobs storage.BlobStore) *Library {
	return &Library{repo: repo, blobs: blobs}
}

// List 返回用户的全部音频，最新的在前
func (l *Library) List(ctx context.Context, userID int64) ([]*model.Audio, error) {
	audios, err := l.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list audios: %w", err)
	}
	return audios, nil
}

// Get 获取单条记录；不存在、不属于该用户、ID 非法都返回 ErrNotFound
func (l *Library) Get(ctx context.Context, userID int64, id string) (*model.Audio, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	audio, err := l.repo.GetByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get audio %s: %w", id, err)
	}
	if audio == nil {
		return nil, ErrNotFound
	}
	return audio, nil
}

// Update 修改描述和分类，两者去除首尾空白后都不能为空。
// 先按所有者解析记录，不存在或不属于该用户时总是 ErrNotFound；值未变化时不写库。
func (l *Library) Update(ctx context.Context, userID int64, id string, upd model.AudioUpdate) (*model.Audio, error) {
	current, err := l.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	upd.Description = strings.TrimSpace(upd.Description)
	upd.Category = strings.TrimSpace(upd.Category)
	if upd.Description == "" || upd.Category == "" {
		return nil, badRequest("description and category are required")
	}
	if current.Description == upd.Description && current.Category == upd.Category {
		return current, nil
	}

	found, err := l.repo.UpdateDetails(ctx, id, userID, upd)
	if err != nil {
		return nil, fmt.Errorf("update audio %s: %w", id, err)
	}
	if !found {
		return nil, ErrNotFound
	}

	logger.Info("[Audio] 更新音频信息", logger.Owner(userID), logger.AudioID(id))
	return l.Get(ctx, userID, id)
}

// DeleteAllForUser 删除用户的全部音频，逐条走 Delete，blob 删除尽力而为
func (l *Library) DeleteAllForUser(ctx context.Context, userID int64) (int, error) {
	audios, err := l.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, a := range audios {
		if err := l.Delete(ctx, userID, a.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// Delete 先删除记录，再尽力删除 blob；blob 删除失败只记日志
func (l *Library) Delete(ctx context.Context, userID int64, id string) error {
	audio, err := l.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	deleted, err := l.repo.DeleteByIDAndUser(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("delete audio %s: %w", id, err)
	}
	if !deleted {
		return ErrNotFound
	}

	if err := l.blobs.Delete(ctx, audio.StorageKey); err != nil {
		logger.Warn("[Audio] 记录已删除但 blob 删除失败",
			logger.Owner(userID),
			logger.AudioID(id),
			logger.String("storageKey", audio.StorageKey),
			logger.ErrorField(err))
	}

	logger.Info("[Audio] 删除音频", logger.Owner(userID), logger.AudioID(id))
	return nil
}

// blobMissing 记录存在但 blob 不在：数据一致性异常
func blobMissing(audio *model.Audio) error {
	logger.Warn("[Stream] 记录存在但 blob 缺失",
		logger.Owner(audio.UserID),
		logger.AudioID(audio.ID),
		logger.String("storageKey", audio.StorageKey))
	return ErrBlobMissing
}

func isBlobNotFound(err error) bool {
	return errors.Is(err, storage.ErrBlobNotFound)
}
