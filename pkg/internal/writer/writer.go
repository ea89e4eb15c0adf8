// Package writer 实现弹性记录写入器.
// 写入器持有进程内的工作记录列表（启动时由恢复流程灌入），每次保存
// 只把变化的那一条写进主存储，把成本和故障面固定在单条记录上.
// 两条副路径提升存活率：全量列表快照到旧版 KV 层（体积受限，超限静默
// 跳过），以及通过消息总线把全量快照推给应急工作者落入隔离存储.
//
// 配额超限绝不在这里吞掉，原样上抛给调用方决定是否更狠地压缩后重试.
package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"

	"github.com/JSB847123/simple-business-database/pkg/configs"
	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	kvc "github.com/JSB847123/simple-business-database/pkg/internal/storage/kv"
	"github.com/JSB847123/simple-business-database/pkg/internal/store"
	"github.com/JSB847123/simple-business-database/pkg/internal/types"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
	"github.com/JSB847123/simple-business-database/pkg/metrics"
	"github.com/JSB847123/simple-business-database/pkg/queue"
)

// RecordStore 写入器需要的主存储能力.
type RecordStore interface {
	PutRecord(ctx context.Context, rec *model.Record) error
	DeleteRecord(ctx context.Context, id string) (int, error)
}

// Writer 弹性记录写入器.
// 并发安全；工作列表的读写都在内部互斥锁下进行.
type Writer struct {
	store  RecordStore
	legacy kvc.KVStore
	pub    message.Publisher

	snapshotMaxBytes int64
	snapshotKey      string

	mu      sync.Mutex
	records []model.Record
	dirtyID string
}

// New 创建写入器.
// legacy 与 pub 允许为 nil，对应的副路径自动降级为不执行；
// cfg 为 nil 时使用默认的快照键与体积上限.
func New(st RecordStore, legacy kvc.KVStore, pub message.Publisher, cfg *configs.WriterConfig) *Writer {
	w := &Writer{
		store:            st,
		legacy:           legacy,
		pub:              pub,
		snapshotMaxBytes: configs.DefaultLegacySnapshotMaxBytes,
		snapshotKey:      configs.DefaultLegacySnapshotKey,
	}

	if cfg != nil {
		w.snapshotMaxBytes = cfg.LegacySnapshotMaxBytes
		w.snapshotKey = cfg.LegacySnapshotKey
	}

	return w
}

// Hydrate 用恢复流程合并出的记录列表初始化工作列表.
// 列表应当已按最近保存时间降序排列.
func (w *Writer) Hydrate(recs []model.Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.records = append([]model.Record(nil), recs...)
}

// Records 返回工作列表的副本，调用方只读.
func (w *Writer) Records() []model.Record {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]model.Record(nil), w.records...)
}

// Len 返回工作列表长度.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.records)
}

// SaveRecord 保存一条记录：按 id 更新，不存在则前插，并盖上保存时间戳.
// 主路径只写这一条记录；成功后刷新旧版快照并发布保存事件（都是尽力而为）.
// 主路径失败时内存列表保留改动，旧版镜像仍然尝试（下一层级兜底），
// 错误原样上抛，配额超限由调用方决策.
func (w *Writer) SaveRecord(ctx context.Context, rec *model.Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("record id is required")
	}

	rec.LastSaved = time.Now().UnixMilli()

	w.mu.Lock()
	w.upsertLocked(rec)
	w.dirtyID = rec.ID
	w.mu.Unlock()

	if err := w.store.PutRecord(ctx, rec); err != nil {
		metrics.RecordSaves.WithLabelValues(saveOutcome(err)).Inc()
		w.legacySnapshot(ctx)

		return err
	}

	metrics.RecordSaves.WithLabelValues("ok").Inc()

	w.legacySnapshot(ctx)
	w.publishSaved(rec)

	return nil
}

// DeleteRecord 删除记录及其全部照片，返回清掉的照片数.
// 主存储删除成功后才从工作列表移除并刷新旧版快照.
func (w *Writer) DeleteRecord(ctx context.Context, id string) (int, error) {
	purged, err := w.store.DeleteRecord(ctx, id)
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	for i := range w.records {
		if w.records[i].ID == id {
			w.records = append(w.records[:i], w.records[i+1:]...)

			break
		}
	}

	if w.dirtyID == id {
		w.dirtyID = ""
	}
	w.mu.Unlock()

	w.legacySnapshot(ctx)
	w.publishDeleted(id, purged)

	return purged, nil
}

// Flush 退出前的保底动作：重存最后操作的记录，并发布一次应急快照.
// 返回的结果供外壳在进程退出前告警，不中断退出流程.
func (w *Writer) Flush(ctx context.Context) types.FlushResult {
	var res types.FlushResult

	w.mu.Lock()

	var dirty *model.Record

	if w.dirtyID != "" {
		for i := range w.records {
			if w.records[i].ID == w.dirtyID {
				cp := w.records[i]
				dirty = &cp

				break
			}
		}
	}
	w.mu.Unlock()

	if dirty != nil {
		if err := w.store.PutRecord(ctx, dirty); err != nil {
			res.Error = err.Error()

			nlog.Logger().Warn().Err(err).Str("record_id", dirty.ID).Msg("teardown save failed")
		} else {
			res.Saved = true
		}
	}

	if err := w.PublishSnapshot(ctx, "flush"); err != nil {
		if res.Error == "" {
			res.Error = err.Error()
		}
	} else if w.pub != nil {
		res.Snapshot = true
	}

	return res
}

// PublishSnapshot 把全量工作列表作为快照消息发布给应急工作者.
// trigger 标记触发方式（flush/cron/manual）；未配置发布端时为空操作.
func (w *Writer) PublishSnapshot(ctx context.Context, trigger string) error {
	if w.pub == nil {
		nlog.Logger().Debug().Msg("no publisher configured, emergency snapshot skipped")

		return nil
	}

	payload := queue.RecordSnapshotPayload{
		Records: w.Records(),
		Trigger: trigger,
	}

	if err := queue.PublishRecordSnapshot(w.pub, payload, queue.WithProducer("sbdb-writer")); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}

	metrics.SnapshotPublishes.WithLabelValues(trigger).Inc()

	return nil
}

// upsertLocked 按 id 更新工作列表，不存在则前插最新.
// 存入深拷贝，调用方之后改动自己的记录不会波及工作列表.
func (w *Writer) upsertLocked(rec *model.Record) {
	cloned := *rec.Clone()

	for i := range w.records {
		if w.records[i].ID == rec.ID {
			w.records[i] = cloned

			return
		}
	}

	w.records = append([]model.Record{cloned}, w.records...)
}

// legacySnapshot 把全量列表序列化后写入旧版 KV 层.
// 超过体积上限时静默跳过（只留 debug 日志），主路径已经保证了持久性；
// 写入失败也只告警，副路径永不影响保存结果.
func (w *Writer) legacySnapshot(ctx context.Context) {
	if w.legacy == nil {
		return
	}

	raw, err := sonic.Marshal(w.Records())
	if err != nil {
		nlog.Logger().Warn().Err(err).Msg("legacy snapshot marshal failed")

		return
	}

	if w.snapshotMaxBytes > 0 && int64(len(raw)) > w.snapshotMaxBytes {
		nlog.Logger().Debug().
			Int("bytes", len(raw)).
			Int64("ceiling", w.snapshotMaxBytes).
			Msg("legacy snapshot over ceiling, skipped")

		return
	}

	if err := w.legacy.Set(ctx, w.snapshotKey, raw, 0); err != nil {
		nlog.Logger().Warn().Err(err).Msg("legacy snapshot write failed")
	}
}

// publishSaved 发布单条记录的保存事件，失败只告警.
func (w *Writer) publishSaved(rec *model.Record) {
	if w.pub == nil {
		return
	}

	payload := queue.RecordSavedPayload{
		Record: queue.RecordRef{
			ID:           rec.ID,
			LocationType: rec.LocationType,
			PhotoCount:   rec.PhotoCount(),
			LastSavedMs:  rec.LastSaved,
		},
		Source: "writer",
	}

	if err := queue.PublishRecordSaved(w.pub, payload, queue.WithProducer("sbdb-writer")); err != nil {
		nlog.Logger().Warn().Err(err).Str("record_id", rec.ID).Msg("publish record saved event failed")
	}
}

// publishDeleted 发布记录删除事件，失败只告警.
func (w *Writer) publishDeleted(id string, purged int) {
	if w.pub == nil {
		return
	}

	payload := queue.RecordDeletedPayload{RecordID: id, PhotosPurged: purged}
	if err := queue.PublishRecordDeleted(w.pub, payload, queue.WithProducer("sbdb-writer")); err != nil {
		nlog.Logger().Warn().Err(err).Str("record_id", id).Msg("publish record deleted event failed")
	}
}

// saveOutcome 把保存错误折算成指标标签.
func saveOutcome(err error) string {
	if errors.Is(err, store.ErrQuotaExceeded) {
		return "quota"
	}

	return "error"
}
