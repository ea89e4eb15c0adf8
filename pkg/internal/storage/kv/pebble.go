package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/JSB847123/simple-business-database/pkg/configs"
)

// PebbleKV 基于 Pebble 的目录型 KV 实现，自带 WAL，应急快照层级的默认引擎.
// 与主库完全隔离：主库文件损坏时这里的数据仍然可读.
type PebbleKV struct {
	db *pebble.DB
}

// NewPebbleKV 创建 Pebble KV 实例.
func NewPebbleKV(ctx context.Context, config any) (KVStore, error) {
	pebbleConfig, ok := config.(*configs.PebbleKVConfig)
	if !ok {
		return nil, fmt.Errorf("invalid Pebble config")
	}

	db, err := pebble.Open(pebbleConfig.Dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", pebbleConfig.Dir, err)
	}

	return &PebbleKV{db: db}, nil
}

// Get 获取键的值.
func (p *PebbleKV) Get(ctx context.Context, key string) ([]byte, error) {
	val, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	// val 只在 closer 关闭前有效，先拷贝
	data := make([]byte, len(val))
	copy(data, val)

	if err := closer.Close(); err != nil {
		return nil, fmt.Errorf("failed to release value: %w", err)
	}

	decoded, expired, _, derr := decodeWithTTL(data, time.Now())
	if derr != nil {
		return nil, derr
	}

	if expired {
		// lazy delete expired entry
		_ = p.db.Delete([]byte(key), pebble.Sync)

		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return decoded, nil
}

// Set 设置键的值，同步落盘.
func (p *PebbleKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, _, err := encodeWithTTL(value, ttl)
	if err != nil {
		return err
	}

	if err := p.db.Set([]byte(key), encoded, pebble.Sync); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}

	return nil
}

// Delete 删除键.
func (p *PebbleKV) Delete(ctx context.Context, key string) error {
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	return nil
}

// Exists 检查键是否存在.
func (p *PebbleKV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := p.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

// Keys 遍历获取匹配模式的键.
func (p *PebbleKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	keys := make([]string, 0)

	now := time.Now()

	for iter.First(); iter.Valid(); iter.Next() {
		if _, expired, _, derr := decodeWithTTL(iter.Value(), now); derr == nil && expired {
			continue
		}

		key := string(iter.Key())
		if matchKey(pattern, key) {
			keys = append(keys, key)
		}
	}

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate keys: %w", err)
	}

	return keys, nil
}

// Close 关闭 Pebble.
func (p *PebbleKV) Close() error {
	return p.db.Close()
}

func init() {
	RegisterKVFactory(KVTypePebble, NewPebbleKV)
}
