package configs

import (
	"github.com/spf13/viper"
)

// KVConfig 旧版扁平存储层级（legacy tier）配置.
// 该层级保存迁移前的扁平 JSON 快照，默认使用本地文件后端以便人工核查.
type KVConfig struct {
	Type   string         `mapstructure:"type"   rule:"oneof=file memory pebble redis nats"`
	File   FileKVConfig   `mapstructure:"file"`
	Pebble PebbleKVConfig `mapstructure:"pebble"`
	Redis  RedisKVConfig  `mapstructure:"redis"`
	NATS   NATSKVConfig   `mapstructure:"nats"`
}

// FileKVConfig 文件 KV 配置，每个键对应目录下的一个 JSON 文件.
type FileKVConfig struct {
	Dir string `mapstructure:"dir" rule:"required"`
}

// PebbleKVConfig Pebble KV 配置.
type PebbleKVConfig struct {
	Dir string `mapstructure:"dir" rule:"required"`
}

// RedisKVConfig Redis KV 配置.
type RedisKVConfig struct {
	Addr     string `mapstructure:"addr"     rule:"hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"       rule:"min=0,max=15"`
}

// NATSKVConfig NATS KV 配置.
type NATSKVConfig struct {
	URL      string `mapstructure:"url"      rule:"hostname_port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Bucket   string `mapstructure:"bucket"   rule:"required"`
}

// GetKVType 返回当前配置的 KV 类型.
func (c *KVConfig) GetKVType() string {
	return c.Type
}

// setDefaults 设置 KV 配置的默认值.
func (c *KVConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("kv.type", "file")

	// File 默认值
	v.SetDefault("kv.file.dir", "data/legacy")

	// Pebble 默认值
	v.SetDefault("kv.pebble.dir", "data/pebble")

	// Redis 默认值
	v.SetDefault("kv.redis.addr", "localhost:6379")
	v.SetDefault("kv.redis.password", "")
	v.SetDefault("kv.redis.db", 0)

	// NATS 默认值
	v.SetDefault("kv.nats.url", "localhost:4222")
	v.SetDefault("kv.nats.user", "")
	v.SetDefault("kv.nats.password", "")
	v.SetDefault("kv.nats.bucket", "sbdb-kv")
}
