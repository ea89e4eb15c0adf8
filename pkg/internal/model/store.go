package model

import (
	"time"
)

// RecordRow 记录表行.
// 整篇文档以 JSON 存于 doc 列，时间列冗余出来做排序索引.
// last_saved_ms 为 NULL 表示从未手动保存，排序时回退到 created_ms.
type RecordRow struct {
	ID           string `gorm:"primaryKey;size:64"          json:"id"`
	LocationType string `gorm:"size:128;index"              json:"location_type"`
	CreatedMs    int64  `gorm:"column:created_ms;index"     json:"created_ms"`
	LastSavedMs  *int64 `gorm:"column:last_saved_ms;index"  json:"last_saved_ms"`
	Doc          string `gorm:"type:text"                   json:"doc"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName 指定表名.
func (RecordRow) TableName() string {
	return "records"
}

// PhotoRow 照片二进制表行，photo_id 全局唯一.
type PhotoRow struct {
	PhotoID   string `gorm:"primaryKey;size:64;column:photo_id" json:"photo_id"`
	Blob      []byte `json:"-"`
	CreatedAt time.Time
}

// TableName 指定表名.
func (PhotoRow) TableName() string {
	return "photos"
}

// PhotoMetaRow 照片元数据表行，与二进制行同事务创建和删除.
type PhotoMetaRow struct {
	PhotoID string `gorm:"primaryKey;size:64;column:photo_id" json:"photo_id"`
	Name    string `gorm:"size:512"                           json:"name"`
	Size    int64  `json:"size"`
	// 拍摄时间（epoch 毫秒）
	TimestampMs int64  `gorm:"column:timestamp_ms" json:"timestamp_ms"`
	LocationID  string `gorm:"size:64;index"       json:"location_id"`
	FloorID     string `gorm:"size:64"             json:"floor_id"`
	// xxhash64 校验和，十六进制字符串，避免 uint64 在各方言下的符号问题
	Checksum  string `gorm:"size:16" json:"checksum"`
	CreatedAt time.Time
}

// TableName 指定表名.
func (PhotoMetaRow) TableName() string {
	return "photo_metadata"
}

// SettingRow 设置表行，值为 JSON 文本.
type SettingRow struct {
	Name      string `gorm:"primaryKey;size:128" json:"name"`
	Value     string `gorm:"type:text"           json:"value"`
	UpdatedAt time.Time
}

// TableName 指定表名.
func (SettingRow) TableName() string {
	return "settings"
}
