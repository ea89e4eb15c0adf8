// Package emergency 实现应急快照工作者.
// 工作者订阅记录快照主题，把每份全量快照写进与主库完全隔离的 KV
// （默认 Pebble 目录存储，自带 WAL），主库事务坏掉时这里仍有最后一份
// 可恢复的数据.固定的 latest 键之外保留一圈有限数量的历史快照.
package emergency

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/oklog/ulid"

	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	kvc "github.com/JSB847123/simple-business-database/pkg/internal/storage/kv"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
	"github.com/JSB847123/simple-business-database/pkg/queue"
)

const (
	// LatestKey 最新快照的固定键.
	LatestKey = "snapshot_latest"
	// HistoryPrefix 历史快照键前缀，后接 ulid，字典序即时间序.
	HistoryPrefix = "snapshot_history/"
	// DefaultHistoryKeep 默认保留的历史快照数量.
	DefaultHistoryKeep = 20
)

// historyEntropy 历史键的 ulid 熵源；只在消费循环单协程里使用.
var historyEntropy = ulid.Monotonic(crand.Reader, 0)

// Snapshot 应急层落盘的快照结构.
type Snapshot struct {
	Records    []model.Record `json:"records"`
	Trigger    string         `json:"trigger,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Worker 应急快照工作者.
type Worker struct {
	store       kvc.KVStore
	sub         message.Subscriber
	historyKeep int
}

// NewWorker 创建工作者.historyKeep 小于 1 时取默认值.
func NewWorker(store kvc.KVStore, sub message.Subscriber, historyKeep int) *Worker {
	if historyKeep < 1 {
		historyKeep = DefaultHistoryKeep
	}

	return &Worker{store: store, sub: sub, historyKeep: historyKeep}
}

// Start 订阅快照主题并启动消费循环.
// 循环随订阅通道关闭（上下文取消或订阅端关闭）而退出.
func (w *Worker) Start(ctx context.Context) error {
	msgs, err := w.sub.Subscribe(ctx, queue.TopicRecordSnapshot)
	if err != nil {
		return fmt.Errorf("subscribe snapshot topic: %w", err)
	}

	go w.loop(ctx, msgs)

	nlog.Logger().Info().Int("history_keep", w.historyKeep).Msg("emergency snapshot worker started")

	return nil
}

// loop 消费快照消息.
// 快照是幂等覆盖，处理失败只告警后 Ack，不重投：重投修不好磁盘问题，
// 反而会让损坏消息空转，下一份快照自然会覆盖.
func (w *Worker) loop(ctx context.Context, msgs <-chan *message.Message) {
	for msg := range msgs {
		if err := w.handle(ctx, msg); err != nil {
			nlog.Logger().Warn().Err(err).Str("message_uuid", msg.UUID).Msg("emergency snapshot persist failed")
		}

		msg.Ack()
	}
}

// handle 解析一条快照消息并落盘.
func (w *Worker) handle(ctx context.Context, msg *message.Message) error {
	env, err := queue.ParseRecordSnapshot(msg)
	if err != nil {
		return fmt.Errorf("parse snapshot message: %w", err)
	}

	snap := Snapshot{
		Records:    env.Payload.Records,
		Trigger:    env.Payload.Trigger,
		OccurredAt: env.Header.OccurredAt,
	}

	return w.persist(ctx, snap)
}

// persist 写入 latest 键并追加历史环.
// latest 写成功即视为快照已保住；历史环失败只告警.
func (w *Worker) persist(ctx context.Context, snap Snapshot) error {
	raw, err := sonic.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := w.store.Set(ctx, LatestKey, raw, 0); err != nil {
		return fmt.Errorf("write latest snapshot: %w", err)
	}

	histKey := HistoryPrefix + ulid.MustNew(ulid.Timestamp(time.Now().UTC()), historyEntropy).String()
	if err := w.store.Set(ctx, histKey, raw, 0); err != nil {
		nlog.Logger().Warn().Err(err).Msg("write history snapshot failed")

		return nil
	}

	w.pruneHistory(ctx)

	nlog.Logger().Debug().
		Int("records", len(snap.Records)).
		Str("trigger", snap.Trigger).
		Msg("emergency snapshot persisted")

	return nil
}

// pruneHistory 删掉超出保留数量的最旧历史快照.
func (w *Worker) pruneHistory(ctx context.Context) {
	keys, err := w.store.Keys(ctx, HistoryPrefix+"*")
	if err != nil {
		nlog.Logger().Warn().Err(err).Msg("list history snapshots failed")

		return
	}

	if len(keys) <= w.historyKeep {
		return
	}

	sort.Strings(keys)

	for _, k := range keys[:len(keys)-w.historyKeep] {
		if err := w.store.Delete(ctx, k); err != nil {
			nlog.Logger().Warn().Err(err).Str("key", k).Msg("prune history snapshot failed")
		}
	}
}

// ReadLatest 读取应急层最新快照中的记录列表.
// 键不存在返回 (nil, nil)，内容损坏返回错误.
func ReadLatest(ctx context.Context, store kvc.KVStore) ([]model.Record, error) {
	raw, err := store.Get(ctx, LatestKey)
	if err != nil {
		if errors.Is(err, kvc.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	var snap Snapshot
	if err := sonic.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode emergency snapshot: %w", err)
	}

	return snap.Records, nil
}
