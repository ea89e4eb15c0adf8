package migrate_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/bytedance/sonic"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JSB847123/simple-business-database/pkg/internal/codec"
	"github.com/JSB847123/simple-business-database/pkg/internal/migrate"
	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	"github.com/JSB847123/simple-business-database/pkg/internal/storage/db"
	kvc "github.com/JSB847123/simple-business-database/pkg/internal/storage/kv"
	"github.com/JSB847123/simple-business-database/pkg/internal/store"
	"github.com/JSB847123/simple-business-database/pkg/queue"
)

// newTestStore 在临时目录建一个 SQLite 存储.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	gdb, err := gorm.Open(
		sqlite.Open(filepath.Join(t.TempDir(), "test.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	return store.New(&db.Client{DB: gdb}, 0)
}

// newLegacyKV 建一个内存 KV 当旧版层.
func newLegacyKV(t *testing.T) kvc.KVStore {
	t.Helper()

	legacy, err := kvc.NewMemoryKV(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewMemoryKV: %v", err)
	}

	return legacy
}

// seedLegacy 把任意值序列化后写进旧版层.
func seedLegacy(t *testing.T, legacy kvc.KVStore, key string, v any) {
	t.Helper()

	raw, err := sonic.Marshal(v)
	if err != nil {
		t.Fatalf("marshal legacy value: %v", err)
	}

	if err := legacy.Set(context.Background(), key, raw, 0); err != nil {
		t.Fatalf("seed legacy key %s: %v", key, err)
	}
}

// makeLegacyRecord 构造一条带指定照片的旧版记录.
func makeLegacyRecord(id string, lastSaved int64, photos []model.Photo) model.Record {
	return model.Record{
		ID:      id,
		Address: model.Address{AddressAndName: "济州市 1-1 测试大楼"},
		Floors: []model.Floor{
			{ID: id + "-f1", FloorName: model.Floor1F, FloorInfo: "办公室", Photos: photos},
		},
		Timestamp: 1000,
		LastSaved: lastSaved,
	}
}

// TestEngine_Run_MigratesInlinePhotos 测试内联照片解码落库并剥离 URL.
func TestEngine_Run_MigratesInlinePhotos(t *testing.T) {
	s := newTestStore(t)
	legacy := newLegacyKV(t)
	ctx := context.Background()

	front := []byte("front-jpeg-bytes")
	back := []byte("back-jpeg-bytes-longer")

	rec := makeLegacyRecord("rec-1", 2000, []model.Photo{
		{ID: "photo-front", Name: "front.jpg", URL: codec.EncodeDataURL(front, "image/jpeg"), Timestamp: 1234},
		{ID: "photo-back", Name: "back.jpg", URL: codec.EncodeDataURL(back, "image/jpeg"), Timestamp: 1235},
	})
	seedLegacy(t, legacy, "sbdb_records", []model.Record{rec})

	eng := migrate.New(s, legacy, migrate.WithYield(0))

	rep, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rep.SuccessCount != 2 || rep.FailedCount != 0 {
		t.Errorf("expected 2 success 0 failed, got %d/%d", rep.SuccessCount, rep.FailedCount)
	}

	wantBytes := int64(len(front) + len(back))
	if rep.TotalBytesMigrated != wantBytes {
		t.Errorf("expected %d bytes migrated, got %d", wantBytes, rep.TotalBytesMigrated)
	}

	if eng.State() != migrate.StateCompleted {
		t.Errorf("expected completed state, got %s", eng.State())
	}

	// blob 可按原字节取回
	got, err := s.GetPhotoBlob(ctx, "photo-front")
	if err != nil || !bytes.Equal(got, front) {
		t.Errorf("front blob mismatch: %v %v", got, err)
	}

	// 剥离后的文档已写回，lastSaved 沿用旧版值
	stripped, err := s.GetRecord(ctx, "rec-1")
	if err != nil || stripped == nil {
		t.Fatalf("stripped record missing: %v %v", stripped, err)
	}

	if stripped.LastSaved != 2000 {
		t.Errorf("lastSaved not preserved: %d", stripped.LastSaved)
	}

	for _, p := range stripped.Floors[0].Photos {
		if p.URL != "" {
			t.Errorf("photo %s still carries inline payload", p.ID)
		}
	}

	// 旧版条目保留作审计
	exists, err := legacy.Exists(ctx, "sbdb_records")
	if err != nil || !exists {
		t.Error("legacy entry should be retained after migration")
	}

	// 完成标志已置位
	var done bool
	if err := s.GetSetting(ctx, migrate.FlagMigrationDone, &done); err != nil || !done {
		t.Errorf("migration flag not set: %v %v", done, err)
	}
}

// TestEngine_Run_PartialFailure 测试一张损坏照片只计失败，不中断扫描.
func TestEngine_Run_PartialFailure(t *testing.T) {
	s := newTestStore(t)
	legacy := newLegacyKV(t)
	ctx := context.Background()

	valid := []byte("valid-jpeg-bytes")

	rec := makeLegacyRecord("rec-1", 0, []model.Photo{
		{ID: "photo-ok", Name: "ok.jpg", URL: codec.EncodeDataURL(valid, "image/jpeg")},
		{ID: "photo-bad", Name: "bad.jpg", URL: "data:image/jpeg;base64,!!!not-base64!!!"},
	})
	seedLegacy(t, legacy, "sbdb_records", []model.Record{rec})

	eng := migrate.New(s, legacy, migrate.WithYield(0))

	rep, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rep.SuccessCount != 1 || rep.FailedCount != 1 {
		t.Errorf("expected 1 success 1 failed, got %d/%d", rep.SuccessCount, rep.FailedCount)
	}

	if eng.State() != migrate.StateCompleted {
		t.Errorf("partial failure must still complete, got %s", eng.State())
	}

	got, err := s.GetPhotoBlob(ctx, "photo-ok")
	if err != nil || !bytes.Equal(got, valid) {
		t.Errorf("valid blob should be retrievable: %v %v", got, err)
	}

	// 失败的照片保留内联负载等待下次重试
	stripped, err := s.GetRecord(ctx, "rec-1")
	if err != nil || stripped == nil {
		t.Fatalf("stripped record missing: %v %v", stripped, err)
	}

	if stripped.Floors[0].Photos[1].URL == "" {
		t.Error("failed photo must keep its inline payload")
	}
}

// TestEngine_Run_Idempotent 测试标志置位后的重复运行不再产生写入.
func TestEngine_Run_Idempotent(t *testing.T) {
	s := newTestStore(t)
	legacy := newLegacyKV(t)
	ctx := context.Background()

	rec := makeLegacyRecord("rec-1", 0, []model.Photo{
		{ID: "photo-1", Name: "p.jpg", URL: codec.EncodeDataURL([]byte("bytes"), "image/jpeg")},
	})
	seedLegacy(t, legacy, "sbdb_records", []model.Record{rec})

	eng := migrate.New(s, legacy, migrate.WithYield(0))

	first, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	if first.SuccessCount != 1 {
		t.Fatalf("first run expected 1 success, got %d", first.SuccessCount)
	}

	// 同一引擎再跑：返回缓存结果
	second, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if second.SuccessCount != first.SuccessCount {
		t.Errorf("second run report changed: %+v", second)
	}

	// 新进程（新引擎）再跑：标志短路，零写入
	fresh := migrate.New(s, legacy, migrate.WithYield(0))

	rep, err := fresh.Run(ctx)
	if err != nil {
		t.Fatalf("fresh Run: %v", err)
	}

	if rep.SuccessCount != 0 || rep.FailedCount != 0 {
		t.Errorf("flag short-circuit should skip the scan, got %+v", rep)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.PhotoCount != 1 {
		t.Errorf("photo count changed across reruns: %d", stats.PhotoCount)
	}
}

// TestEngine_Run_SkipsWhenPhotosPresent 测试主存储已有照片时补标志不扫描.
func TestEngine_Run_SkipsWhenPhotosPresent(t *testing.T) {
	s := newTestStore(t)
	legacy := newLegacyKV(t)
	ctx := context.Background()

	// 此前的部分迁移已经写过一张照片
	err := s.PutPhotoBlob(ctx, "photo-old", []byte("old"), store.BlobMeta{Name: "old.jpg", LocationID: "rec-1"})
	if err != nil {
		t.Fatalf("PutPhotoBlob: %v", err)
	}

	// 旧版层里仍有未迁移的内联照片，但不应被扫描
	rec := makeLegacyRecord("rec-2", 0, []model.Photo{
		{ID: "photo-new", Name: "new.jpg", URL: codec.EncodeDataURL([]byte("new"), "image/jpeg")},
	})
	seedLegacy(t, legacy, "sbdb_records", []model.Record{rec})

	eng := migrate.New(s, legacy, migrate.WithYield(0))

	rep, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rep.SuccessCount != 0 || rep.FailedCount != 0 {
		t.Errorf("photos-present short-circuit should not scan, got %+v", rep)
	}

	var done bool
	if err := s.GetSetting(ctx, migrate.FlagMigrationDone, &done); err != nil || !done {
		t.Errorf("flag should be set without scanning: %v %v", done, err)
	}

	if blob, _ := s.GetPhotoBlob(ctx, "photo-new"); blob != nil {
		t.Error("legacy photo must not be migrated by the short-circuit path")
	}
}

// TestEngine_ForceRerun 测试强制重跑跳过短路且全量成功.
func TestEngine_ForceRerun(t *testing.T) {
	s := newTestStore(t)
	legacy := newLegacyKV(t)
	ctx := context.Background()

	rec := makeLegacyRecord("rec-1", 0, []model.Photo{
		{ID: "photo-1", Name: "p.jpg", URL: codec.EncodeDataURL([]byte("bytes"), "image/jpeg")},
	})
	seedLegacy(t, legacy, "sbdb_records", []model.Record{rec})

	eng := migrate.New(s, legacy, migrate.WithYield(0))

	if _, err := eng.Run(ctx); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	if err := eng.ForceRerun(ctx); err != nil {
		t.Fatalf("ForceRerun: %v", err)
	}

	if eng.State() != migrate.StatePending {
		t.Errorf("expected pending after ForceRerun, got %s", eng.State())
	}

	// 已完整迁移的存储上强制重跑：照片覆盖写入，零失败
	rep, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("forced Run: %v", err)
	}

	if rep.FailedCount != 0 {
		t.Errorf("forced rerun on migrated store expected 0 failures, got %d", rep.FailedCount)
	}

	if rep.SuccessCount != 1 {
		t.Errorf("forced rerun should reprocess the inline photo, got %d", rep.SuccessCount)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.PhotoCount != 1 {
		t.Errorf("rerun must overwrite, not duplicate: %d photos", stats.PhotoCount)
	}
}

// TestEngine_Run_ParsesSingleRecordAndSkipsJunk 测试单条记录形态与非记录键.
func TestEngine_Run_ParsesSingleRecordAndSkipsJunk(t *testing.T) {
	s := newTestStore(t)
	legacy := newLegacyKV(t)
	ctx := context.Background()

	single := makeLegacyRecord("rec-solo", 0, []model.Photo{
		{ID: "photo-solo", Name: "s.jpg", URL: codec.EncodeDataURL([]byte("solo"), "image/jpeg")},
	})
	seedLegacy(t, legacy, "record_backup", single)

	// 设置项和坏数据都不是迁移对象
	seedLegacy(t, legacy, "app_theme", map[string]string{"theme": "dark"})

	if err := legacy.Set(ctx, "corrupt_entry", []byte("not-json-at-all"), 0); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	eng := migrate.New(s, legacy, migrate.WithYield(0))

	rep, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rep.SuccessCount != 1 || rep.FailedCount != 0 {
		t.Errorf("expected 1/0 from the single-record entry, got %d/%d", rep.SuccessCount, rep.FailedCount)
	}
}

// TestEngine_Run_PublishesCompletionEvent 测试完成事件经消息总线可收到.
func TestEngine_Run_PublishesCompletionEvent(t *testing.T) {
	s := newTestStore(t)
	legacy := newLegacyKV(t)
	ctx := context.Background()

	rec := makeLegacyRecord("rec-1", 0, []model.Photo{
		{ID: "photo-1", Name: "p.jpg", URL: codec.EncodeDataURL([]byte("bytes"), "image/jpeg")},
	})
	seedLegacy(t, legacy, "sbdb_records", []model.Record{rec})

	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})

	msgs, err := pubsub.Subscribe(ctx, queue.TopicMigrationCompleted)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	eng := migrate.New(s, legacy, migrate.WithYield(0), migrate.WithPublisher(pubsub))

	if _, err := eng.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	select {
	case msg := <-msgs:
		env, err := queue.ParseWatermillMessage[queue.MigrationCompletedPayload](msg)
		if err != nil {
			t.Fatalf("parse completion event: %v", err)
		}

		if env.Payload.SuccessCount != 1 {
			t.Errorf("event success count mismatch: %+v", env.Payload)
		}

		msg.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("no completion event received")
	}
}
