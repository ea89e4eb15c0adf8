// Package migrate 实现旧版内联照片的一次性迁移.
// 旧版应用把照片编码成 data URL 内联在记录文档里，整包塞进扁平 KV 层；
// 迁移把每张内联照片解码后写入主存储的二进制 blob 表，并把剥离了内联
// 负载的记录文档写回 records 集合.旧版条目本身保留，用于审计和回滚.
//
// 状态机：pending -> running -> {completed, failed}.
// 单张照片解码或落库失败只计数，整个扫描不中断；
// 只有旧版层或主存储整体不可用才进入 failed.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"

	"github.com/JSB847123/simple-business-database/pkg/internal/codec"
	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	kvc "github.com/JSB847123/simple-business-database/pkg/internal/storage/kv"
	"github.com/JSB847123/simple-business-database/pkg/internal/store"
	"github.com/JSB847123/simple-business-database/pkg/internal/types"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
	"github.com/JSB847123/simple-business-database/pkg/metrics"
	"github.com/JSB847123/simple-business-database/pkg/queue"
	"github.com/JSB847123/simple-business-database/pkg/tracing"
)

// FlagMigrationDone 迁移完成标志在 settings 集合里的键名.
const FlagMigrationDone = "photo_migration_done"

// DefaultPhotoYield 两张照片之间的默认让出时长.
// 迁移扫描和采集请求跑在同一台设备上，照片解码是整段占用的，
// 让出窗口给其他请求和垃圾回收留出空隙.
const DefaultPhotoYield = 5 * time.Millisecond

// State 迁移引擎状态.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Engine 旧版照片迁移引擎.
// 每个进程创建一个实例；Run 幂等，completed 之后再调用直接返回上次结果.
type Engine struct {
	store  *store.Store
	legacy kvc.KVStore
	pub    message.Publisher
	yield  time.Duration

	mu     sync.Mutex
	state  State
	forced bool
	report types.MigrationReport
}

// Option 配置迁移引擎的可选项.
type Option func(*Engine)

// WithYield 设置照片之间的让出时长，0 表示不让出.
func WithYield(d time.Duration) Option {
	return func(e *Engine) { e.yield = d }
}

// WithPublisher 设置迁移事件的发布端，nil 表示不发布.
func WithPublisher(pub message.Publisher) Option {
	return func(e *Engine) { e.pub = pub }
}

// New 创建迁移引擎，初始状态 pending.
// legacy 允许为 nil（旧版层未配置或初始化失败），此时没有可扫描的来源，
// 首次 Run 会直接置位完成标志.
func New(st *store.Store, legacy kvc.KVStore, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		legacy: legacy,
		state:  StatePending,
		yield:  DefaultPhotoYield,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// State 返回当前状态.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// Report 返回最近一次运行的结果汇总，State 字段始终反映当前状态.
func (e *Engine) Report() types.MigrationReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	rep := e.report
	rep.State = string(e.state)

	return rep
}

// ForceRerun 清除迁移标志并回到 pending，供运维手工触发重跑.
// 下一次 Run 不再因主存储已有照片而短路.
func (e *Engine) ForceRerun(ctx context.Context) error {
	if err := e.store.DeleteSetting(ctx, FlagMigrationDone); err != nil {
		return fmt.Errorf("clear migration flag: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = StatePending
	e.forced = true
	e.report = types.MigrationReport{}

	return nil
}

// Run 执行迁移.
// 标志已置位或主存储已有照片（非强制）时不扫描直接完成；
// 其余情况扫描旧版层，单张照片失败只计数.完成后无论成败都会置位标志.
func (e *Engine) Run(ctx context.Context) (types.MigrationReport, error) {
	e.mu.Lock()

	switch e.state {
	case StateRunning:
		rep := e.report
		rep.State = string(StateRunning)
		e.mu.Unlock()

		return rep, fmt.Errorf("migration already running")
	case StateCompleted:
		rep := e.report
		rep.State = string(StateCompleted)
		e.mu.Unlock()

		return rep, nil
	}

	e.state = StateRunning
	forced := e.forced
	e.mu.Unlock()

	rep, err := e.run(ctx, forced)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.state = StateFailed
		rep.State = string(StateFailed)
		e.report = rep

		e.publishFailed(err)

		return rep, err
	}

	e.state = StateCompleted
	e.forced = false
	rep.State = string(StateCompleted)
	e.report = rep

	e.publishCompleted(rep)

	return rep, nil
}

// run 执行一次完整的检查与扫描，返回部分失败统计.
func (e *Engine) run(ctx context.Context, forced bool) (types.MigrationReport, error) {
	ctx, span := tracing.StartSpan(ctx, "migrate.Run")
	defer span.End()

	var rep types.MigrationReport

	// 标志已置位：早先的运行已经完成，无事可做
	var done bool

	err := e.store.GetSetting(ctx, FlagMigrationDone, &done)
	switch {
	case err == nil && done:
		return rep, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return rep, fmt.Errorf("read migration flag: %w", err)
	}

	// 主存储已有照片说明此前部分迁移已经写入过，直接补标志避免重复处理；
	// 强制重跑时跳过该短路
	if !forced {
		stats, err := e.store.Stats(ctx)
		if err != nil {
			return rep, fmt.Errorf("probe photo count: %w", err)
		}

		if stats.PhotoCount > 0 {
			if err := e.store.SetSetting(ctx, FlagMigrationDone, true); err != nil {
				return rep, fmt.Errorf("set migration flag: %w", err)
			}

			nlog.Logger().Info().Int("photo_count", stats.PhotoCount).
				Msg("photos already present, migration marked done without scanning")

			return rep, nil
		}
	}

	e.publishStarted(forced)

	if e.legacy == nil {
		nlog.Logger().Debug().Msg("legacy tier unavailable, nothing to migrate")
	} else if err := e.scanLegacy(ctx, &rep); err != nil {
		return rep, err
	}

	// 扫描收尾：单张照片的失败不影响置位
	if err := e.store.SetSetting(ctx, FlagMigrationDone, true); err != nil {
		return rep, fmt.Errorf("set migration flag: %w", err)
	}

	nlog.Logger().Info().
		Int("success", rep.SuccessCount).
		Int("failed", rep.FailedCount).
		Int64("bytes", rep.TotalBytesMigrated).
		Msg("legacy photo migration completed")

	return rep, nil
}

// scanLegacy 遍历旧版层的全部键，对解析为记录的条目做照片迁移.
func (e *Engine) scanLegacy(ctx context.Context, rep *types.MigrationReport) error {
	keys, err := e.legacy.Keys(ctx, "")
	if err != nil {
		return fmt.Errorf("scan legacy store: %w", err)
	}

	for _, key := range keys {
		raw, err := e.legacy.Get(ctx, key)
		if err != nil {
			// 键在扫描间隙被删等局部问题，跳过继续
			nlog.Logger().Warn().Err(err).Str("key", key).Msg("skip unreadable legacy entry")

			continue
		}

		records, ok := parseRecords(raw)
		if !ok {
			continue
		}

		for i := range records {
			if err := e.migrateRecord(ctx, &records[i], rep); err != nil {
				return err
			}
		}
	}

	return nil
}

// migrateRecord 迁移一条记录里的全部内联照片.
// 返回非 nil 仅当上下文被取消；单张照片的失败计入 rep 后继续.
func (e *Engine) migrateRecord(ctx context.Context, rec *model.Record, rep *types.MigrationReport) error {
	migrated := 0

	for fi := range rec.Floors {
		floor := &rec.Floors[fi]

		for pi := range floor.Photos {
			photo := &floor.Photos[pi]
			if !codec.IsDataURL(photo.URL) {
				continue
			}

			n, err := e.migratePhoto(ctx, rec.ID, floor.ID, photo)
			if err != nil {
				rep.FailedCount++
				metrics.MigrationPhotos.WithLabelValues("failed").Inc()
				nlog.Logger().Warn().Err(err).
					Str("record_id", rec.ID).
					Str("photo_id", photo.ID).
					Msg("photo migration failed")
			} else {
				migrated++
				rep.SuccessCount++
				rep.TotalBytesMigrated += n
				metrics.MigrationPhotos.WithLabelValues("migrated").Inc()
				metrics.MigrationBytes.Add(float64(n))
			}

			if err := e.yieldBetween(ctx); err != nil {
				return err
			}
		}
	}

	if migrated == 0 {
		return nil
	}

	// 剥离后的文档写回主存储，沿用旧版的 lastSaved，不影响排序位置.
	// blob 已经落库，文档写回失败只告警；恢复合并仍会读到旧版文档
	if err := e.store.PutRecord(ctx, rec); err != nil {
		nlog.Logger().Warn().Err(err).Str("record_id", rec.ID).
			Msg("stripped record upsert failed after photo migration")
	}

	return nil
}

// migratePhoto 解码一张内联照片并写入 blob 表，成功后剥离 URL.
func (e *Engine) migratePhoto(ctx context.Context, recordID, floorID string, photo *model.Photo) (int64, error) {
	data, _, err := codec.DecodeDataURL(photo.URL)
	if err != nil {
		return 0, err
	}

	meta := store.BlobMeta{
		Name:        photo.Name,
		TimestampMs: photo.Timestamp,
		LocationID:  recordID,
		FloorID:     floorID,
	}
	if err := e.store.PutPhotoBlob(ctx, photo.ID, data, meta); err != nil {
		return 0, err
	}

	photo.URL = ""

	return int64(len(data)), nil
}

// yieldBetween 在两张照片之间短暂让出，避免长扫描独占设备.
func (e *Engine) yieldBetween(ctx context.Context) error {
	if e.yield <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.yield):
		return nil
	}
}

// parseRecords 把旧版条目解析为记录数组或单条记录.
// 其它形态的值（设置项、标志位等）不是迁移对象，返回 false.
func parseRecords(raw []byte) ([]model.Record, bool) {
	var list []model.Record
	if err := sonic.Unmarshal(raw, &list); err == nil && len(list) > 0 && list[0].ID != "" {
		return list, true
	}

	var one model.Record
	if err := sonic.Unmarshal(raw, &one); err == nil && one.ID != "" {
		return []model.Record{one}, true
	}

	return nil, false
}

// publishStarted 发布扫描开始事件，发布失败只告警.
func (e *Engine) publishStarted(forced bool) {
	if e.pub == nil {
		return
	}

	payload := queue.MigrationStartedPayload{Forced: forced}
	if err := queue.PublishMigrationStarted(e.pub, payload, queue.WithProducer("sbdb-migrate")); err != nil {
		nlog.Logger().Warn().Err(err).Msg("publish migration started event failed")
	}
}

// publishCompleted 发布完成事件，携带部分失败统计.
func (e *Engine) publishCompleted(rep types.MigrationReport) {
	if e.pub == nil {
		return
	}

	payload := queue.MigrationCompletedPayload{
		SuccessCount:       rep.SuccessCount,
		FailedCount:        rep.FailedCount,
		TotalBytesMigrated: rep.TotalBytesMigrated,
	}
	if err := queue.PublishMigrationCompleted(e.pub, payload, queue.WithProducer("sbdb-migrate")); err != nil {
		nlog.Logger().Warn().Err(err).Msg("publish migration completed event failed")
	}
}

// publishFailed 发布整体失败事件.
func (e *Engine) publishFailed(runErr error) {
	if e.pub == nil {
		return
	}

	payload := queue.MigrationFailedPayload{Error: runErr.Error()}
	if err := queue.PublishMigrationFailed(e.pub, payload, queue.WithProducer("sbdb-migrate")); err != nil {
		nlog.Logger().Warn().Err(err).Msg("publish migration failed event failed")
	}
}
