package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JSB847123/simple-business-database/pkg/configs"
	ctxPkg "github.com/JSB847123/simple-business-database/pkg/context"
	"github.com/JSB847123/simple-business-database/pkg/internal/handlecache"
	"github.com/JSB847123/simple-business-database/pkg/internal/migrate"
	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	"github.com/JSB847123/simple-business-database/pkg/internal/service"
	"github.com/JSB847123/simple-business-database/pkg/internal/storage/db"
	"github.com/JSB847123/simple-business-database/pkg/internal/store"
	"github.com/JSB847123/simple-business-database/pkg/internal/types"
	"github.com/JSB847123/simple-business-database/pkg/internal/writer"
)

// testEnv 服务层测试环境：真实 SQLite 存储加内存工作列表.
type testEnv struct {
	ctx     context.Context
	store   *store.Store
	writer  *writer.Writer
	handles *handlecache.Cache
}

// newTestEnv 构建带组件注入的 context，配置走默认值.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	if err := configs.InitConfig(t.TempDir()); err != nil {
		t.Fatalf("InitConfig: %v", err)
	}

	gdb, err := gorm.Open(
		sqlite.Open(filepath.Join(t.TempDir(), "svc.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	st := store.New(&db.Client{DB: gdb}, 0)

	w := writer.New(st, nil, nil, &configs.WriterConfig{
		LegacySnapshotMaxBytes: configs.DefaultLegacySnapshotMaxBytes,
		LegacySnapshotKey:      configs.DefaultLegacySnapshotKey,
	})

	handles, err := handlecache.New(st, t.TempDir())
	if err != nil {
		t.Fatalf("handlecache.New: %v", err)
	}

	t.Cleanup(handles.RevokeAll)

	env := &testEnv{store: st, writer: w, handles: handles}
	env.ctx = ctxPkg.WithComponents(context.Background(), &ctxPkg.Components{
		Store:   st,
		Writer:  w,
		Handles: handles,
	})

	return env
}

// makeRecord 构造一条通过校验的记录.
func makeRecord(id string) *model.Record {
	return &model.Record{
		ID:      id,
		Address: model.Address{AddressAndName: "济州市 1-1 测试大楼"},
		Floors: []model.Floor{
			{ID: id + "-f1", FloorName: model.Floor1F, FloorInfo: "办公室"},
		},
		Timestamp: 1000,
	}
}

// TestRecordService_SaveFillsDefaults 测试保存时补齐 id 和创建时间.
func TestRecordService_SaveFillsDefaults(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewRecordService(env.ctx)

	rec := makeRecord("")
	rec.Timestamp = 0
	rec.Floors[0].ID = "fixed-f1"

	if err := svc.Save(env.ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if rec.ID == "" {
		t.Error("empty id should be generated on save")
	}

	if rec.Timestamp == 0 {
		t.Error("zero timestamp should be stamped on save")
	}

	if err := svc.Save(env.ctx, nil); err == nil {
		t.Error("nil record must be rejected")
	}
}

// TestRecordService_GetPrefersWorkingList 测试读取优先走内存工作列表且返回深拷贝.
func TestRecordService_GetPrefersWorkingList(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewRecordService(env.ctx)

	if err := svc.Save(env.ctx, makeRecord("rec-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := svc.Get(env.ctx, "rec-1")
	if err != nil || got == nil {
		t.Fatalf("Get: %v %v", got, err)
	}

	// 改动返回值不能影响工作列表里的原件
	got.Notes = "本地改动"
	got.Floors[0].FloorInfo = "被篡改"

	again, err := svc.Get(env.ctx, "rec-1")
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}

	if again.Notes != "" || again.Floors[0].FloorInfo != "办公室" {
		t.Errorf("Get must return a deep copy, got %+v", again)
	}
}

// TestRecordService_GetFallsBackToStore 测试工作列表未命中时回落主存储.
func TestRecordService_GetFallsBackToStore(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewRecordService(env.ctx)

	if err := env.store.PutRecord(env.ctx, makeRecord("cold-1")); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}

	got, err := svc.Get(env.ctx, "cold-1")
	if err != nil || got == nil || got.ID != "cold-1" {
		t.Fatalf("expected store fallback hit, got %+v %v", got, err)
	}

	missing, err := svc.Get(env.ctx, "no-such")
	if err != nil || missing != nil {
		t.Errorf("absent record should be (nil, nil), got %+v %v", missing, err)
	}
}

// TestRecordService_ListFilters 测试类型、关键字与日期过滤.
func TestRecordService_ListFilters(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewRecordService(env.ctx)

	recA := makeRecord("rec-a")
	recA.LocationType = "지하상가"
	recA.Notes = "管道检查完成"

	recB := makeRecord("rec-b")
	recB.LocationType = "지하철역사"
	recB.CheckItems = "消防栓"

	for _, rec := range []*model.Record{recA, recB} {
		if err := svc.Save(env.ctx, rec); err != nil {
			t.Fatalf("Save %s: %v", rec.ID, err)
		}
	}

	got, total, err := svc.List(env.ctx, types.ListRecordsQuery{LocationType: "지하상가"})
	if err != nil {
		t.Fatalf("List by type: %v", err)
	}

	if total != 1 || len(got) != 1 || got[0].ID != "rec-a" {
		t.Errorf("type filter mismatch: total=%d got=%+v", total, got)
	}

	// 关键字对地址、备注、检查项做大小写不敏感子串匹配
	got, total, err = svc.List(env.ctx, types.ListRecordsQuery{Search: "消防"})
	if err != nil {
		t.Fatalf("List by search: %v", err)
	}

	if total != 1 || got[0].ID != "rec-b" {
		t.Errorf("search filter mismatch: total=%d got=%+v", total, got)
	}

	_, total, err = svc.List(env.ctx, types.ListRecordsQuery{Search: "测试大楼"})
	if err != nil || total != 2 {
		t.Errorf("address search should match both: total=%d err=%v", total, err)
	}
}

// TestRecordService_ListDateRange 测试按保存日期过滤.
func TestRecordService_ListDateRange(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewRecordService(env.ctx)

	if err := svc.Save(env.ctx, makeRecord("rec-now")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// 保存时间戳是当前时间，远古区间必然不命中
	got, total, err := svc.List(env.ctx, types.ListRecordsQuery{StartDate: "2000-01-01", EndDate: "2000-12-31"})
	if err != nil {
		t.Fatalf("List ancient range: %v", err)
	}

	if total != 0 || len(got) != 0 {
		t.Errorf("ancient range should match nothing, got total=%d", total)
	}

	// 覆盖今天的宽区间必然命中
	_, total, err = svc.List(env.ctx, types.ListRecordsQuery{StartDate: "2000-01-01", EndDate: "2999-12-31"})
	if err != nil || total != 1 {
		t.Errorf("wide range should match the record: total=%d err=%v", total, err)
	}

	if _, _, err := svc.List(env.ctx, types.ListRecordsQuery{StartDate: "not-a-date"}); err == nil {
		t.Error("malformed startDate must be rejected")
	}
}

// TestRecordService_ListPaging 测试分页切片与 Limit<=0 的全量返回.
func TestRecordService_ListPaging(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewRecordService(env.ctx)

	for _, id := range []string{"rec-1", "rec-2", "rec-3"} {
		if err := svc.Save(env.ctx, makeRecord(id)); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	got, total, err := svc.List(env.ctx, types.ListRecordsQuery{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}

	if total != 3 || len(got) != 1 {
		t.Errorf("expected total 3 with 1 item on page 2, got total=%d len=%d", total, len(got))
	}

	// 新保存的排前面：第 2 页剩下的是最早保存的 rec-1
	if got[0].ID != "rec-1" {
		t.Errorf("expected rec-1 on page 2, got %s", got[0].ID)
	}

	got, total, err = svc.List(env.ctx, types.ListRecordsQuery{})
	if err != nil || total != 3 || len(got) != 3 {
		t.Errorf("limit 0 should return all: total=%d len=%d err=%v", total, len(got), err)
	}

	got, _, err = svc.List(env.ctx, types.ListRecordsQuery{Page: 9, Limit: 2})
	if err != nil || len(got) != 0 {
		t.Errorf("out of range page should be empty, got %d", len(got))
	}

	if _, _, err := svc.List(env.ctx, types.ListRecordsQuery{Limit: 2000}); err == nil {
		t.Error("limit above cap must be rejected")
	}
}

// TestRecordService_Delete 测试删除联动照片清理与未命中报错.
func TestRecordService_Delete(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewRecordService(env.ctx)

	rec := makeRecord("rec-1")
	rec.Floors[0].Photos = []model.Photo{{ID: "photo-1", Name: "p.jpg", Timestamp: 1000}}

	if err := svc.Save(env.ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	meta := store.BlobMeta{Name: "p.jpg", LocationID: "rec-1", FloorID: "rec-1-f1"}
	if err := env.store.PutPhotoBlob(env.ctx, "photo-1", []byte("jpeg"), meta); err != nil {
		t.Fatalf("PutPhotoBlob: %v", err)
	}

	purged, err := svc.Delete(env.ctx, "rec-1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if purged != 1 {
		t.Errorf("expected 1 purged photo, got %d", purged)
	}

	if _, err := svc.Delete(env.ctx, "rec-1"); !errors.Is(err, service.ErrRecordNotFound) {
		t.Errorf("double delete should report not found, got %v", err)
	}
}

// TestMaintenanceService_Stats 测试统计汇总包含工作列表与配额视图.
func TestMaintenanceService_Stats(t *testing.T) {
	env := newTestEnv(t)
	recSvc := service.NewRecordService(env.ctx)
	maint := service.NewMaintenanceService(env.ctx)

	if err := recSvc.Save(env.ctx, makeRecord("rec-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	meta := store.BlobMeta{Name: "p.jpg", LocationID: "rec-1", FloorID: "rec-1-f1"}
	if err := env.store.PutPhotoBlob(env.ctx, "photo-1", []byte("12345"), meta); err != nil {
		t.Fatalf("PutPhotoBlob: %v", err)
	}

	stats, err := maint.Stats(env.ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.Store.RecordCount != 1 || stats.Store.PhotoCount != 1 {
		t.Errorf("store counts mismatch: %+v", stats.Store)
	}

	if stats.WorkingRecords != 1 {
		t.Errorf("expected 1 working record, got %d", stats.WorkingRecords)
	}

	if stats.QuotaUsedBytes != 5 {
		t.Errorf("expected 5 quota bytes used, got %d", stats.QuotaUsedBytes)
	}
}

// TestMaintenanceService_MigrationWithoutEngine 测试迁移引擎缺席时的降级行为.
func TestMaintenanceService_MigrationWithoutEngine(t *testing.T) {
	env := newTestEnv(t)
	maint := service.NewMaintenanceService(env.ctx)

	rep := maint.MigrationStatus()
	if rep.State != string(migrate.StatePending) {
		t.Errorf("expected pending state without engine, got %q", rep.State)
	}

	if _, err := maint.MigrationRerun(env.ctx); !errors.Is(err, service.ErrMigratorUnavailable) {
		t.Errorf("expected ErrMigratorUnavailable, got %v", err)
	}
}

// TestMaintenanceService_Flush 测试保底落盘走到写入器.
func TestMaintenanceService_Flush(t *testing.T) {
	env := newTestEnv(t)
	recSvc := service.NewRecordService(env.ctx)
	maint := service.NewMaintenanceService(env.ctx)

	if err := recSvc.Save(env.ctx, makeRecord("rec-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	res := maint.Flush(env.ctx)
	if !res.Saved {
		t.Errorf("flush should re-save the dirty record: %+v", res)
	}
}
