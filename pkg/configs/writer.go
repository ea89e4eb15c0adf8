package configs

import (
	"github.com/spf13/viper"
)

const (
	DefaultQuotaBytes             = 512 * 1024 * 1024 // 默认照片总量配额（512MB，浏览器配额的本地对应物）
	DefaultLegacySnapshotMaxBytes = 5 * 1024 * 1024   // 旧版层级全量快照的体积上限（5MB）
	DefaultLegacySnapshotKey      = "sbdb_records"    // 旧版层级快照使用的固定键
)

// WriterConfig 记录写入器配置.
type WriterConfig struct {
	QuotaBytes             int64  `mapstructure:"quota_bytes"               rule:"min=0"`
	LegacySnapshotMaxBytes int64  `mapstructure:"legacy_snapshot_max_bytes" rule:"min=0"`
	LegacySnapshotKey      string `mapstructure:"legacy_snapshot_key"       rule:"required"`
}

// setDefaults 设置写入器配置的默认值.
func (c *WriterConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("writer.quota_bytes", DefaultQuotaBytes)
	v.SetDefault("writer.legacy_snapshot_max_bytes", DefaultLegacySnapshotMaxBytes)
	v.SetDefault("writer.legacy_snapshot_key", DefaultLegacySnapshotKey)
}
