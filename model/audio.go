package model

import "time"

// Audio is the metadata record describing one uploaded audio file.
type Audio struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	UserID       int64     `json:"userId" gorm:"index:idx_audios_user_created,priority:1;not null"`
	OriginalName string    `json:"originalName" gorm:"size:255;not null"`
	Description  string    `json:"description" gorm:"type:text;not null"`
	Category     string    `json:"category" gorm:"size:100;not null"`
	StorageKey   string    `json:"-" gorm:"size:128;uniqueIndex;not null"` // 服务端生成，不暴露给客户端
	MimeType     string    `json:"mimeType" gorm:"size:100;not null"`
	CreatedAt    time.Time `json:"createdAt" gorm:"index:idx_audios_user_created,priority:2"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Audio) TableName() string {
	return "audios"
}

// AudioListItem 列表视图，不包含 mimeType
type AudioListItem struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"userId"`
	OriginalName string    `json:"originalName"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ToListItem 转换为列表视图
func (a *Audio) ToListItem() AudioListItem {
	return AudioListItem{
		ID:           a.ID,
		UserID:       a.UserID,
		OriginalName: a.OriginalName,
		Description:  a.Description,
		Category:     a.Category,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

// AudioUpdate carries the mutable fields of an Audio.
type AudioUpdate struct {
	Description string `json:"description"`
	Category    string `json:"category"`
}
