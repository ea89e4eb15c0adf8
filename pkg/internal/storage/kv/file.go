package kv

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JSB847123/simple-business-database/pkg/configs"
)

// tmpPrefix 写入中间文件的前缀，列举键时跳过.
const tmpPrefix = ".tmp-"

// FileKV 目录文件型 KV，每个键对应一个文件，旧版扁平层级的默认实现.
// 值按原样落盘，迁移审计时可以直接翻目录核对.
type FileKV struct {
	dir string
}

// NewFileKV 创建文件 KV 实例，目录不存在则创建.
func NewFileKV(ctx context.Context, config any) (KVStore, error) {
	fileConfig, ok := config.(*configs.FileKVConfig)
	if !ok {
		return nil, fmt.Errorf("invalid file KV config")
	}

	if err := os.MkdirAll(fileConfig.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create KV dir %s: %w", fileConfig.Dir, err)
	}

	return &FileKV{dir: fileConfig.Dir}, nil
}

// keyPath 把键转成目录下的安全文件名.
func (f *FileKV) keyPath(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key))
}

// Get 获取键的值.
func (f *FileKV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.keyPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %w", key, err)
	}

	val, expired, _, derr := decodeWithTTL(data, time.Now())
	if derr != nil {
		return nil, derr
	}

	if expired {
		_ = os.Remove(f.keyPath(key))

		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return val, nil
}

// Set 写入键值：先写中间文件再原子改名，断电不会留下半个值.
func (f *FileKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, _, err := encodeWithTTL(value, ttl)
	if err != nil {
		return err
	}

	target := f.keyPath(key)
	tmp := filepath.Join(f.dir, tmpPrefix+url.PathEscape(key))

	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}

	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to commit key %s: %w", key, err)
	}

	return nil
}

// Delete 删除键，不存在视为成功.
func (f *FileKV) Delete(ctx context.Context, key string) error {
	err := os.Remove(f.keyPath(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	return nil
}

// Exists 检查键是否存在.
func (f *FileKV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := f.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

// Keys 获取匹配模式的键.
func (f *FileKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	keys := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}

		key, uerr := url.PathUnescape(e.Name())
		if uerr != nil {
			continue
		}

		if matchKey(pattern, key) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

// Close 关闭存储（文件实现无需操作）.
func (f *FileKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(KVTypeFile, NewFileKV)
}
