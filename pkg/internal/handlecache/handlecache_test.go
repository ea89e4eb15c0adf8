package handlecache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/JSB847123/simple-business-database/pkg/internal/handlecache"
)

// fakeBlobs 模拟主存储的照片读取.
type fakeBlobs struct {
	data map[string][]byte
	err  error
}

func (f *fakeBlobs) GetPhotoBlob(ctx context.Context, photoID string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}

	blob, ok := f.data[photoID]
	if !ok {
		return nil, nil
	}

	return blob, nil
}

func newTestCache(t *testing.T, blobs *fakeBlobs) *handlecache.Cache {
	t.Helper()

	c, err := handlecache.New(blobs, filepath.Join(t.TempDir(), "handles"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return c
}

// TestCache_GetOrCreate 测试句柄创建与命中复用.
func TestCache_GetOrCreate(t *testing.T) {
	blobs := &fakeBlobs{data: map[string][]byte{"photo-1": []byte("jpeg-bytes")}}
	c := newTestCache(t, blobs)
	ctx := context.Background()

	h1, err := c.GetOrCreate(ctx, "photo-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if h1 == nil {
		t.Fatal("expected a handle for existing photo")
	}

	if h1.Token == "" {
		t.Error("handle token empty")
	}

	if !strings.HasPrefix(h1.URL, "file://") {
		t.Errorf("handle URL should be file://, got %s", h1.URL)
	}

	onDisk, err := os.ReadFile(h1.Path)
	if err != nil {
		t.Fatalf("handle file unreadable: %v", err)
	}

	if string(onDisk) != "jpeg-bytes" {
		t.Errorf("handle file content mismatch: %q", onDisk)
	}

	// 第二次取同一张照片：同一个句柄，不另起文件
	h2, err := c.GetOrCreate(ctx, "photo-1")
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}

	if h2 != h1 {
		t.Error("expected the same handle on cache hit")
	}

	if c.Len() != 1 {
		t.Errorf("expected 1 live handle, got %d", c.Len())
	}
}

// TestCache_GetOrCreate_Absent 测试照片不存在返回 (nil, nil).
func TestCache_GetOrCreate_Absent(t *testing.T) {
	c := newTestCache(t, &fakeBlobs{data: map[string][]byte{}})

	h, err := c.GetOrCreate(context.Background(), "no-such-photo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h != nil {
		t.Errorf("expected nil handle, got %+v", h)
	}

	if c.Len() != 0 {
		t.Errorf("no handle should be cached, got %d", c.Len())
	}
}

// TestCache_GetOrCreate_SourceError 测试后端错误上抛且不缓存.
func TestCache_GetOrCreate_SourceError(t *testing.T) {
	blobs := &fakeBlobs{err: errors.New("storage down")}
	c := newTestCache(t, blobs)

	if _, err := c.GetOrCreate(context.Background(), "photo-1"); err == nil {
		t.Fatal("expected error from blob source")
	}

	if c.Len() != 0 {
		t.Errorf("failed load must not cache a handle, got %d", c.Len())
	}
}

// TestCache_Revoke 测试撤销删除文件并允许重建.
func TestCache_Revoke(t *testing.T) {
	blobs := &fakeBlobs{data: map[string][]byte{"photo-1": []byte("x")}}
	c := newTestCache(t, blobs)
	ctx := context.Background()

	h1, err := c.GetOrCreate(ctx, "photo-1")
	if err != nil || h1 == nil {
		t.Fatalf("GetOrCreate: %v %v", h1, err)
	}

	c.Revoke("photo-1")

	if _, err := os.Stat(h1.Path); !os.IsNotExist(err) {
		t.Error("handle file should be removed on revoke")
	}

	if c.Len() != 0 {
		t.Errorf("expected 0 handles after revoke, got %d", c.Len())
	}

	// 撤销不存在的照片：空操作
	c.Revoke("no-such-photo")

	// 重建得到新句柄
	h2, err := c.GetOrCreate(ctx, "photo-1")
	if err != nil || h2 == nil {
		t.Fatalf("recreate after revoke: %v %v", h2, err)
	}

	if h2.Token == h1.Token {
		t.Error("recreated handle should carry a fresh token")
	}
}

// TestCache_RevokeAll 测试收尾清理.
func TestCache_RevokeAll(t *testing.T) {
	blobs := &fakeBlobs{data: map[string][]byte{
		"photo-1": []byte("a"),
		"photo-2": []byte("b"),
	}}
	c := newTestCache(t, blobs)
	ctx := context.Background()

	var paths []string

	for _, id := range []string{"photo-1", "photo-2"} {
		h, err := c.GetOrCreate(ctx, id)
		if err != nil || h == nil {
			t.Fatalf("GetOrCreate %s: %v %v", id, h, err)
		}

		paths = append(paths, h.Path)
	}

	c.RevokeAll()

	if c.Len() != 0 {
		t.Errorf("expected 0 handles after RevokeAll, got %d", c.Len())
	}

	for _, p := range paths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("handle file %s should be removed", p)
		}
	}
}

// TestCache_SweepsStaleFiles 测试构造时清扫上个进程的遗留文件.
func TestCache_SweepsStaleFiles(t *testing.T) {
	base := filepath.Join(t.TempDir(), "handles")
	staleDir := filepath.Join(base, "stale-process")

	if err := os.MkdirAll(staleDir, 0o700); err != nil {
		t.Fatalf("prepare stale dir: %v", err)
	}

	stale := filepath.Join(staleDir, "orphan.jpg")
	if err := os.WriteFile(stale, []byte("orphan"), 0o600); err != nil {
		t.Fatalf("prepare stale file: %v", err)
	}

	if _, err := handlecache.New(&fakeBlobs{}, base); err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale handle file should be swept at construction")
	}
}

// TestCache_ConcurrentSingleHandle 测试并发请求同一照片只产生一个句柄.
func TestCache_ConcurrentSingleHandle(t *testing.T) {
	blobs := &fakeBlobs{data: map[string][]byte{"photo-1": []byte("x")}}
	c := newTestCache(t, blobs)
	ctx := context.Background()

	const workers = 10

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		paths = make(map[string]struct{})
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			h, err := c.GetOrCreate(ctx, "photo-1")
			if err != nil || h == nil {
				t.Errorf("GetOrCreate: %v %v", h, err)
				return
			}

			mu.Lock()
			paths[h.Path] = struct{}{}
			mu.Unlock()
		}()
	}

	wg.Wait()

	if len(paths) != 1 {
		t.Errorf("expected exactly one handle path, got %d", len(paths))
	}

	if c.Len() != 1 {
		t.Errorf("expected 1 live handle, got %d", c.Len())
	}
}
