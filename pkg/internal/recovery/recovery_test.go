package recovery_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JSB847123/simple-business-database/pkg/configs"
	"github.com/JSB847123/simple-business-database/pkg/internal/emergency"
	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	"github.com/JSB847123/simple-business-database/pkg/internal/recovery"
	"github.com/JSB847123/simple-business-database/pkg/internal/storage/db"
	kvc "github.com/JSB847123/simple-business-database/pkg/internal/storage/kv"
	"github.com/JSB847123/simple-business-database/pkg/internal/store"
)

// failingKV 所有操作都报错的 KV 假实现，模拟整层不可用.
type failingKV struct{}

func (f *failingKV) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("tier down")
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("tier down")
}

func (f *failingKV) Delete(ctx context.Context, key string) error { return errors.New("tier down") }

func (f *failingKV) Exists(ctx context.Context, key string) (bool, error) {
	return false, errors.New("tier down")
}

func (f *failingKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	return nil, errors.New("tier down")
}

func (f *failingKV) Close() error { return nil }

// newTestStore 在临时目录建一个 SQLite 存储.
func newTestStore(t *testing.T, quota int64) *store.Store {
	t.Helper()

	gdb, err := gorm.Open(
		sqlite.Open(filepath.Join(t.TempDir(), "test.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	return store.New(&db.Client{DB: gdb}, quota)
}

// newMemKV 建一个内存 KV.
func newMemKV(t *testing.T) kvc.KVStore {
	t.Helper()

	s, err := kvc.NewMemoryKV(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewMemoryKV: %v", err)
	}

	return s
}

// makeRecord 构造一条带标记的记录.
func makeRecord(id string, lastSaved int64, notes string) model.Record {
	return model.Record{
		ID:      id,
		Address: model.Address{AddressAndName: "济州市 1-1 测试大楼"},
		Floors: []model.Floor{
			{ID: id + "-f1", FloorName: model.Floor1F, FloorInfo: "办公室"},
		},
		Notes:     notes,
		Timestamp: 1000,
		LastSaved: lastSaved,
	}
}

// seedLegacySnapshot 往旧版层写一份记录列表快照.
func seedLegacySnapshot(t *testing.T, legacy kvc.KVStore, recs []model.Record) {
	t.Helper()

	raw, err := sonic.Marshal(recs)
	if err != nil {
		t.Fatalf("marshal legacy snapshot: %v", err)
	}

	if err := legacy.Set(context.Background(), configs.DefaultLegacySnapshotKey, raw, 0); err != nil {
		t.Fatalf("seed legacy snapshot: %v", err)
	}
}

// seedEmergencySnapshot 往应急层写一份最新快照.
func seedEmergencySnapshot(t *testing.T, emerg kvc.KVStore, recs []model.Record) {
	t.Helper()

	raw, err := sonic.Marshal(emergency.Snapshot{Records: recs, OccurredAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("marshal emergency snapshot: %v", err)
	}

	if err := emerg.Set(context.Background(), emergency.LatestKey, raw, 0); err != nil {
		t.Fatalf("seed emergency snapshot: %v", err)
	}
}

// TestRecovery_RecoverAll_MergesByLastSaved 测试三层合并时保存时间大者胜.
func TestRecovery_RecoverAll_MergesByLastSaved(t *testing.T) {
	s := newTestStore(t, 0)
	legacy := newMemKV(t)
	emerg := newMemKV(t)
	ctx := context.Background()

	// 主存储：rec-1 旧版本、rec-2 新版本
	for _, rec := range []model.Record{
		makeRecord("rec-1", 1000, "from-primary"),
		makeRecord("rec-2", 2000, "from-primary"),
	} {
		if err := s.PutRecord(ctx, &rec); err != nil {
			t.Fatalf("PutRecord: %v", err)
		}
	}

	// 旧版层：rec-1 更新的版本 + 独有的 rec-3
	seedLegacySnapshot(t, legacy, []model.Record{
		makeRecord("rec-1", 3000, "from-legacy"),
		makeRecord("rec-3", 500, "from-legacy"),
	})

	// 应急层：rec-2 更旧的版本 + 独有的 rec-4
	seedEmergencySnapshot(t, emerg, []model.Record{
		makeRecord("rec-2", 1500, "from-emergency"),
		makeRecord("rec-4", 100, "from-emergency"),
	})

	r := recovery.New(s, legacy, emerg, "")

	merged := r.RecoverAll(ctx)
	if len(merged) != 4 {
		t.Fatalf("expected 4 merged records, got %d", len(merged))
	}

	// 最近保存的在前
	wantOrder := []string{"rec-1", "rec-2", "rec-3", "rec-4"}
	for i, want := range wantOrder {
		if merged[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, merged[i].ID)
		}
	}

	if merged[0].Notes != "from-legacy" {
		t.Errorf("rec-1 conflict should keep the legacy version: %q", merged[0].Notes)
	}

	if merged[1].Notes != "from-primary" {
		t.Errorf("rec-2 conflict should keep the primary version: %q", merged[1].Notes)
	}
}

// TestRecovery_RecoverAll_AbsentLosesToPresent 测试未保存过的记录输给保存过的.
func TestRecovery_RecoverAll_AbsentLosesToPresent(t *testing.T) {
	s := newTestStore(t, 0)
	legacy := newMemKV(t)
	ctx := context.Background()

	// 主存储版本从未保存过（lastSaved 缺失）
	unsaved := makeRecord("rec-1", 0, "from-primary")
	if err := s.PutRecord(ctx, &unsaved); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}

	// 旧版层版本保存过，哪怕时间很早也应当胜出
	seedLegacySnapshot(t, legacy, []model.Record{makeRecord("rec-1", 100, "from-legacy")})

	r := recovery.New(s, legacy, nil, "")

	merged := r.RecoverAll(ctx)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged record, got %d", len(merged))
	}

	if merged[0].Notes != "from-legacy" {
		t.Errorf("present lastSaved must beat absent: %q", merged[0].Notes)
	}
}

// TestRecovery_RecoverAll_TierFailureTolerated 测试单层不可用不影响其余层.
func TestRecovery_RecoverAll_TierFailureTolerated(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	rec := makeRecord("rec-1", 1000, "from-primary")
	if err := s.PutRecord(ctx, &rec); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}

	r := recovery.New(s, &failingKV{}, &failingKV{}, "")

	merged := r.RecoverAll(ctx)
	if len(merged) != 1 || merged[0].ID != "rec-1" {
		t.Errorf("primary records should survive tier failures: %+v", merged)
	}
}

// TestRecovery_Diagnose_AllHealthy 测试三层探测与内容统计.
func TestRecovery_Diagnose_AllHealthy(t *testing.T) {
	s := newTestStore(t, 1024)
	legacy := newMemKV(t)
	emerg := newMemKV(t)
	ctx := context.Background()

	rec := makeRecord("rec-1", 1000, "")
	if err := s.PutRecord(ctx, &rec); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}

	meta := store.BlobMeta{Name: "p.jpg", LocationID: "rec-1"}
	if err := s.PutPhotoBlob(ctx, "photo-1", []byte("0123456789"), meta); err != nil {
		t.Fatalf("PutPhotoBlob: %v", err)
	}

	seedLegacySnapshot(t, legacy, []model.Record{rec})
	seedEmergencySnapshot(t, emerg, []model.Record{rec, makeRecord("rec-2", 0, "")})

	r := recovery.New(s, legacy, emerg, "")

	report := r.Diagnose(ctx)
	if len(report.Tiers) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(report.Tiers))
	}

	for _, tier := range report.Tiers {
		if !tier.Healthy {
			t.Errorf("tier %s should be healthy: %s", tier.Tier, tier.Error)
		}
	}

	if report.RecordCounts[recovery.TierPrimary] != 1 {
		t.Errorf("primary record count: %d", report.RecordCounts[recovery.TierPrimary])
	}

	if report.RecordCounts[recovery.TierLegacy] != 1 {
		t.Errorf("legacy record count: %d", report.RecordCounts[recovery.TierLegacy])
	}

	if report.RecordCounts[recovery.TierEmergency] != 2 {
		t.Errorf("emergency record count: %d", report.RecordCounts[recovery.TierEmergency])
	}

	if report.QuotaUsedBytes != 10 || report.QuotaTotalBytes != 1024 {
		t.Errorf("quota fields mismatch: used=%d total=%d", report.QuotaUsedBytes, report.QuotaTotalBytes)
	}

	// 探针键已清掉
	exists, err := legacy.Exists(ctx, recovery.ProbeKey)
	if err != nil || exists {
		t.Error("probe key should be removed after diagnose")
	}
}

// TestRecovery_Diagnose_UnconfiguredTier 测试未配置层级的健康汇报.
func TestRecovery_Diagnose_UnconfiguredTier(t *testing.T) {
	s := newTestStore(t, 0)

	r := recovery.New(s, nil, nil, "")

	report := r.Diagnose(context.Background())

	for _, tier := range report.Tiers {
		switch tier.Tier {
		case recovery.TierPrimary:
			if !tier.Healthy {
				t.Errorf("primary should be healthy: %s", tier.Error)
			}
		default:
			if tier.Healthy || tier.Error != "not configured" {
				t.Errorf("tier %s should report not configured: %+v", tier.Tier, tier)
			}
		}
	}
}

// TestRecovery_Diagnose_FailedTier 测试不可写层级的健康汇报.
func TestRecovery_Diagnose_FailedTier(t *testing.T) {
	s := newTestStore(t, 0)

	r := recovery.New(s, &failingKV{}, nil, "")

	report := r.Diagnose(context.Background())

	for _, tier := range report.Tiers {
		if tier.Tier == recovery.TierLegacy {
			if tier.Healthy {
				t.Error("failing tier should be unhealthy")
			}

			if tier.Error == "" {
				t.Error("failing tier should carry the probe error")
			}
		}
	}
}
