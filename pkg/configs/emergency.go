package configs

import (
	"github.com/spf13/viper"
)

const (
	DefaultEmergencyEnabled     = true             // 默认启用应急快照层级
	DefaultEmergencyDir         = "data/emergency" // 默认应急存储目录
	DefaultEmergencyHistoryKeep = 20               // 默认保留的历史快照数量
	DefaultEmergencyIntervalMin = 10               // 默认定时快照间隔（分钟）
)

// EmergencyConfig 应急快照存储层级配置.
// 应急层独立于主库，使用自带 WAL 的 Pebble 目录存储，主库损坏时仍可恢复.
type EmergencyConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Dir         string `mapstructure:"dir"          rule:"required"`
	HistoryKeep int    `mapstructure:"history_keep" rule:"min=1,max=1000"`
	IntervalMin int    `mapstructure:"interval_min" rule:"min=1,max=1440"`
}

// setDefaults 设置应急存储配置的默认值.
func (c *EmergencyConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("emergency.enabled", DefaultEmergencyEnabled)
	v.SetDefault("emergency.dir", DefaultEmergencyDir)
	v.SetDefault("emergency.history_keep", DefaultEmergencyHistoryKeep)
	v.SetDefault("emergency.interval_min", DefaultEmergencyIntervalMin)
}
