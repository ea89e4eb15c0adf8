// Package handlecache 管理照片的进程内查看句柄.
//
// 句柄指向隔离目录下的临时文件，查看端以 file:// URL 访问；
// 句柄从不持久化，进程退出（或撤销）即失效.同一照片至多一个活句柄.
package handlecache

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid"

	nlog "github.com/JSB847123/simple-business-database/pkg/log"
)

// 全局单例的 ULID 熵源，使用单调递增策略，同一毫秒内生成的 token 保持有序。
var ulidEntropy = ulid.Monotonic(crand.Reader, 0)

// Handle 一张照片的查看句柄.
type Handle struct {
	PhotoID string
	Token   string
	Path    string
	URL     string
}

// BlobSource 句柄缓存的后端数据源，照片不存在时返回 (nil, nil).
type BlobSource interface {
	GetPhotoBlob(ctx context.Context, photoID string) ([]byte, error)
}

// Cache 照片查看句柄缓存.
type Cache struct {
	mu      sync.Mutex
	handles map[string]*Handle
	blobs   BlobSource
	dir     string
}

// DefaultBaseDir 返回默认的句柄根目录.
func DefaultBaseDir() string {
	return filepath.Join(os.TempDir(), "sbdb-handles")
}

// New 创建句柄缓存.baseDir 为空时使用系统临时目录下的默认位置.
// 构造时清扫上个进程遗留的句柄文件（设备应用单进程，陈旧句柄一律无效），
// 然后为本进程建立独立子目录.
func New(blobs BlobSource, baseDir string) (*Cache, error) {
	if baseDir == "" {
		baseDir = DefaultBaseDir()
	}

	// 崩溃的进程会留下句柄文件，开场全部清掉
	if err := os.RemoveAll(baseDir); err != nil {
		nlog.Logger().Warn().Err(err).Str("dir", baseDir).Msg("stale handle sweep failed")
	}

	dir := filepath.Join(baseDir, newToken())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create handle dir %s: %w", dir, err)
	}

	return &Cache{
		handles: make(map[string]*Handle),
		blobs:   blobs,
		dir:     dir,
	}, nil
}

// GetOrCreate 返回照片的查看句柄，必要时从主存储加载并写一个临时文件.
// 命中时返回同一个句柄；照片不存在返回 (nil, nil).
func (c *Cache) GetOrCreate(ctx context.Context, photoID string) (*Handle, error) {
	if photoID == "" {
		return nil, fmt.Errorf("photo id is required")
	}

	// 持锁覆盖取数与落盘，保证同一照片至多一个活句柄
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles[photoID]; ok {
		return h, nil
	}

	blob, err := c.blobs.GetPhotoBlob(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("load blob for handle %s: %w", photoID, err)
	}

	if blob == nil {
		return nil, nil
	}

	token := newToken()
	path := filepath.Join(c.dir, token+".jpg")

	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return nil, fmt.Errorf("write handle file %s: %w", path, err)
	}

	h := &Handle{
		PhotoID: photoID,
		Token:   token,
		Path:    path,
		URL:     "file://" + path,
	}
	c.handles[photoID] = h

	return h, nil
}

// Revoke 撤销照片的句柄并删除临时文件，无句柄时为空操作.
func (c *Cache) Revoke(photoID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.handles[photoID]
	if !ok {
		return
	}

	if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
		nlog.Logger().Warn().Err(err).Str("path", h.Path).Msg("remove handle file failed")
	}

	delete(c.handles, photoID)
}

// RevokeAll 撤销全部句柄并移除本进程目录，进程收尾时调用.
func (c *Cache) RevokeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, h := range c.handles {
		if err := os.Remove(h.Path); err != nil && !os.IsNotExist(err) {
			nlog.Logger().Warn().Err(err).Str("path", h.Path).Msg("remove handle file failed")
		}

		delete(c.handles, id)
	}

	if err := os.RemoveAll(c.dir); err != nil {
		nlog.Logger().Warn().Err(err).Str("dir", c.dir).Msg("remove handle dir failed")
	}
}

// Len 返回当前活句柄数.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.handles)
}

// newToken 生成句柄 token.
func newToken() string {
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), ulidEntropy).String()
}
