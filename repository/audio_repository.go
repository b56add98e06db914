package repository

import (
	"context"
	"errors"

	"audiovault/model"

	"gorm.io/gorm"
)

// AudioRepository 音频元数据访问接口，所有查询都按 userID 限定
type AudioRepository interface {
	Create(ctx context.Context, audio *model.Audio) error
	ListByUser(ctx context.Context, userID int64) ([]*model.Audio, error)
	// GetByIDAndUser 未找到或不属于该用户时返回 (nil, nil)
	GetByIDAndUser(ctx context.Context, id string, userID int64) (*model.Audio, error)
	UpdateDetails(ctx context.Context, id string, userID int64, upd model.AudioUpdate) (bool, error)
	DeleteByIDAndUser(ctx context.Context, id string, userID int64) (bool, error)
	// ExistsByStorageKey 供一致性检查使用，不做所有者限定
	ExistsByStorageKey(ctx context.Context, key string) (bool, error)
}

// gormAudioRepository GORM 实现
type gormAudioRepository struct {
	db *gorm.DB
}

// NewGormAudioRepository 创建 GORM 音频仓库
func NewGormAudioRepository(db *gorm.DB) AudioRepository {
	return &gormAudioRepository{db: db}
}

func (r *gormAudioRepository) owned(ctx context.Context, id string, userID int64) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Audio{}).
		Where("id = ? AND user_id = ?", id, userID)
}

// Create 创建音频记录
func (r *gormAudioRepository) Create(ctx context.Context, audio *model.Audio) error {
	return r.db.WithContext(ctx).Create(audio).Error
}

// ListByUser 按创建时间倒序列出用户的音频
func (r *gormAudioRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Audio, error) {
	audios := make([]*model.Audio, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&audios).Error
	if err != nil {
		return nil, err
	}
	return audios, nil
}

// GetByIDAndUser 根据ID和所有者获取音频
func (r *gormAudioRepository) GetByIDAndUser(ctx context.Context, id string, userID int64) (*model.Audio, error) {
	var audio model.Audio
	err := r.owned(ctx, id, userID).First(&audio).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &audio, nil
}

// UpdateDetails 更新描述和分类，返回是否命中记录；值未变化时不写库，updated_at 保持不变
func (r *gormAudioRepository) UpdateDetails(ctx context.Context, id string, userID int64, upd model.AudioUpdate) (bool, error) {
	var current model.Audio
	if err := r.owned(ctx, id, userID).First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if current.Description == upd.Description && current.Category == upd.Category {
		return true, nil
	}

	err := r.owned(ctx, id, userID).Updates(map[string]interface{}{
		"description": upd.Description,
		"category":    upd.Category,
	}).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteByIDAndUser 删除记录，返回是否命中
func (r *gormAudioRepository) DeleteByIDAndUser(ctx context.Context, id string, userID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Audio{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ExistsByStorageKey 检查是否仍有记录引用该 blob
func (r *gormAudioRepository) ExistsByStorageKey(ctx context.Context, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Audio{}).
		Where("storage_key = ?", key).
		Count(&count).Error
	return count > 0, err
}
