package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultSyncBaseURL        = "http://localhost:3000/api" // 默认远端 API 地址
	DefaultSyncTimeout        = 30                          // 默认请求超时（秒）
	DefaultSyncPageLimit      = 100                         // 默认列表分页大小
	DefaultBreakerMaxRequests = 3                           // 半开状态下允许的探测请求数
	DefaultBreakerInterval    = 60                          // 熔断器计数周期（秒）
	DefaultBreakerTimeout     = 30                          // 熔断器打开后的冷却时间（秒）
	DefaultPushCron           = "0 2 * * *"                 // 默认每日推送时间（凌晨2点）
)

// SyncConfig 远端 CRUD API 同步配置.
// 单向推送：本地为权威数据源，不做多端合并.
type SyncConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	BaseURL            string `mapstructure:"base_url"             rule:"url"`
	APIKey             string `mapstructure:"api_key"`
	Timeout            int    `mapstructure:"timeout"              rule:"min=1,max=300"`
	PageLimit          int    `mapstructure:"page_limit"           rule:"min=1,max=1000"`
	BreakerMaxRequests uint32 `mapstructure:"breaker_max_requests" rule:"min=1"`
	BreakerInterval    int    `mapstructure:"breaker_interval"     rule:"min=1"`
	BreakerTimeout     int    `mapstructure:"breaker_timeout"      rule:"min=1"`
	PushCron           string `mapstructure:"push_cron"`
}

// GetTimeoutDuration 返回请求超时时间作为time.Duration.
func (c *SyncConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// setDefaults 设置同步配置的默认值.
func (c *SyncConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("sync.enabled", false)
	v.SetDefault("sync.base_url", DefaultSyncBaseURL)
	v.SetDefault("sync.api_key", "")
	v.SetDefault("sync.timeout", DefaultSyncTimeout)
	v.SetDefault("sync.page_limit", DefaultSyncPageLimit)
	v.SetDefault("sync.breaker_max_requests", DefaultBreakerMaxRequests)
	v.SetDefault("sync.breaker_interval", DefaultBreakerInterval)
	v.SetDefault("sync.breaker_timeout", DefaultBreakerTimeout)
	v.SetDefault("sync.push_cron", DefaultPushCron)
}
