package queue

import (
	"time"

	"github.com/JSB847123/simple-business-database/pkg/internal/model"
)

// EventHeader 定义所有事件的通用头部元数据.
// 建议在发布消息时填充 TraceID、OccurredAt、Producer 等，便于追踪链路与审计.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID，可来自中间件或业务生成.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或设备标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
// T 即不同主题对应的负载结构体.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// -------------------------- 记录领域 --------------------------

// RecordRef 标识一条记录的轻量引用，避免事件携带整个文档.
type RecordRef struct {
	ID           string `json:"id"`
	LocationType string `json:"location_type,omitempty"`
	PhotoCount   int    `json:"photo_count,omitempty"`
	LastSavedMs  int64  `json:"last_saved_ms,omitempty"`
}

// RecordSavedPayload 记录已写入主存储.
type RecordSavedPayload struct {
	Record RecordRef `json:"record"`
	// Source 触发来源（console/sync/migration）.
	Source string `json:"source,omitempty"`
}

// RecordDeletedPayload 记录及其照片已删除.
type RecordDeletedPayload struct {
	RecordID     string `json:"record_id"`
	PhotosPurged int    `json:"photos_purged,omitempty"`
}

// RecordSnapshotPayload 全量记录快照，应急层级按原样落盘.
// 快照携带完整记录文档，崩溃后无需主存储即可恢复.
type RecordSnapshotPayload struct {
	Records []model.Record `json:"records"`
	// Trigger 快照触发方式（flush/cron/manual）.
	Trigger string `json:"trigger,omitempty"`
}

// -------------------------- 照片迁移领域 --------------------------

// MigrationStartedPayload 迁移扫描开始.
type MigrationStartedPayload struct {
	Forced bool `json:"forced,omitempty"`
}

// MigrationCompletedPayload 迁移完成，含部分失败统计.
type MigrationCompletedPayload struct {
	SuccessCount       int   `json:"success_count"`
	FailedCount        int   `json:"failed_count"`
	TotalBytesMigrated int64 `json:"total_bytes_migrated"`
}

// MigrationFailedPayload 迁移整体失败.
type MigrationFailedPayload struct {
	Error string `json:"error"`
}

// -------------------------- 服务器同步领域 --------------------------

// SyncPushedPayload 本地记录已推送到同步服务器.
type SyncPushedPayload struct {
	RecordIDs []string `json:"record_ids"`
	Pushed    int      `json:"pushed"`
}

// SyncFailedPayload 推送失败.
type SyncFailedPayload struct {
	RecordID string `json:"record_id,omitempty"`
	Error    string `json:"error"`
}
