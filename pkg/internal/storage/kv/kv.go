// Package kv 提供用于键值存储的接口和实现.
// 旧版扁平层级和应急快照层级都通过这里的 KVStore 接口访问，
// 后端按类型注册：file（默认旧版层级）、pebble（默认应急层级）、memory、redis、nats.
package kv

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/JSB847123/simple-business-database/pkg/configs"
)

// ErrNotFound 键不存在时由各实现返回，调用方用 errors.Is 判断.
var ErrNotFound = errors.New("kv: key not found")

type Client struct {
	KVStore
}

// KVStore 定义键值存储接口.
type KVStore interface {
	// Get 获取键的值.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set 设置键的值，可选过期时间.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete 删除键，键不存在视为成功.
	Delete(ctx context.Context, key string) error
	// Exists 检查键是否存在.
	Exists(ctx context.Context, key string) (bool, error)
	// Keys 获取匹配 glob 模式的键，空模式匹配全部.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Close 关闭存储连接.
	Close() error
}

// KVType 键值存储类型.
type KVType string

const (
	KVTypeMemory KVType = "memory"
	KVTypeFile   KVType = "file"
	KVTypePebble KVType = "pebble"
	KVTypeRedis  KVType = "redis"
	KVTypeNATS   KVType = "nats"
)

// KVFactory 定义创建 KVStore 的工厂函数类型.
type KVFactory func(ctx context.Context, config any) (KVStore, error)

// kvFactories 存储 KV 类型到工厂的映射.
var kvFactories = make(map[KVType]KVFactory)

// RegisterKVFactory 注册 KV 工厂函数.
func RegisterKVFactory(kvType KVType, factory KVFactory) {
	kvFactories[kvType] = factory
}

// GetRegisteredKVTypes 返回已注册的 KV 类型列表.
func GetRegisteredKVTypes() []KVType {
	types := make([]KVType, 0, len(kvFactories))
	for kvType := range kvFactories {
		types = append(types, kvType)
	}

	return types
}

// NewKVStore 根据类型创建 KVStore 实例.
func NewKVStore(ctx context.Context, kvType KVType, config any) (KVStore, error) {
	factory, exists := kvFactories[kvType]
	if !exists {
		return nil, fmt.Errorf("unsupported KV type: %s", kvType)
	}

	return factory(ctx, config)
}

// NewKVClient 根据全局配置创建旧版层级的 KV 客户端.
func NewKVClient(ctx context.Context) (*Client, error) {
	cfg := configs.GetConfig().KV

	store, err := NewKVStore(ctx, KVType(cfg.Type), subConfig(&cfg))
	if err != nil {
		return nil, err
	}

	return &Client{KVStore: store}, nil
}

// subConfig 取出与类型匹配的子配置传给工厂.
func subConfig(cfg *configs.KVConfig) any {
	switch KVType(cfg.Type) {
	case KVTypeFile:
		return &cfg.File
	case KVTypePebble:
		return &cfg.Pebble
	case KVTypeRedis:
		return &cfg.Redis
	case KVTypeNATS:
		return &cfg.NATS
	default:
		return nil
	}
}

// matchKey 按 glob 模式匹配键，空模式或 "*" 匹配全部.
func matchKey(pattern, key string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	ok, err := path.Match(pattern, key)
	if err != nil {
		return pattern == key
	}

	return ok
}
