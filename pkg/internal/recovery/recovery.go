// Package recovery 实现三层存储的恢复合并与诊断.
// 恢复同时读主存储、旧版快照和应急快照三个层级，按记录 id 去重合并：
// 冲突时保留 lastSaved 更大的那份，没保存过的输给保存过的.
// 任何单层失败只记日志不中断，拿得到多少层算多少层.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"

	"github.com/JSB847123/simple-business-database/pkg/configs"
	"github.com/JSB847123/simple-business-database/pkg/internal/emergency"
	"github.com/JSB847123/simple-business-database/pkg/internal/model"
	kvc "github.com/JSB847123/simple-business-database/pkg/internal/storage/kv"
	"github.com/JSB847123/simple-business-database/pkg/internal/store"
	"github.com/JSB847123/simple-business-database/pkg/internal/types"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
	"github.com/JSB847123/simple-business-database/pkg/tracing"
)

// 层级名称，诊断报告和日志共用.
const (
	TierPrimary   = "primary"
	TierLegacy    = "legacy"
	TierEmergency = "emergency"
)

// ProbeKey 诊断写入的一次性探针键.
const ProbeKey = "sbdb_diagnose_probe"

// probeSettingName 主存储探针使用的设置名.
const probeSettingName = "diagnose_probe"

// Recovery 三层恢复与诊断器.
type Recovery struct {
	store       *store.Store
	legacyKV    kvc.KVStore
	emergencyKV kvc.KVStore
	snapshotKey string
}

// New 创建恢复器.三个层级都允许为 nil，对应层自动跳过；
// snapshotKey 为空时使用默认的旧版快照键.
func New(st *store.Store, legacyKV, emergencyKV kvc.KVStore, snapshotKey string) *Recovery {
	if snapshotKey == "" {
		snapshotKey = configs.DefaultLegacySnapshotKey
	}

	return &Recovery{
		store:       st,
		legacyKV:    legacyKV,
		emergencyKV: emergencyKV,
		snapshotKey: snapshotKey,
	}
}

// RecoverAll 并行读取三个层级并合并，返回按最近保存时间降序的记录列表.
// 单层失败只告警；全部失败时返回空列表.
func (r *Recovery) RecoverAll(ctx context.Context) []model.Record {
	ctx, span := tracing.StartSpan(ctx, "recovery.RecoverAll")
	defer span.End()

	var primary, legacy, emerg []model.Record

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		recs, err := r.readPrimary(gctx)
		if err != nil {
			nlog.Logger().Warn().Err(err).Str("tier", TierPrimary).Msg("recovery tier read failed")

			return nil
		}

		primary = recs

		return nil
	})

	g.Go(func() error {
		recs, err := r.readLegacy(gctx)
		if err != nil {
			nlog.Logger().Warn().Err(err).Str("tier", TierLegacy).Msg("recovery tier read failed")

			return nil
		}

		legacy = recs

		return nil
	})

	g.Go(func() error {
		recs, err := r.readEmergency(gctx)
		if err != nil {
			nlog.Logger().Warn().Err(err).Str("tier", TierEmergency).Msg("recovery tier read failed")

			return nil
		}

		emerg = recs

		return nil
	})

	// 层级读取永不报错，等待纯粹是汇合点
	_ = g.Wait()

	merged := mergeRecords(primary, legacy, emerg)

	nlog.Logger().Info().
		Int("primary", len(primary)).
		Int("legacy", len(legacy)).
		Int("emergency", len(emerg)).
		Int("merged", len(merged)).
		Msg("record recovery merged")

	return merged
}

// readPrimary 读主存储的全部记录.
func (r *Recovery) readPrimary(ctx context.Context) ([]model.Record, error) {
	if r.store == nil {
		return nil, nil
	}

	return r.store.GetAllRecords(ctx)
}

// readLegacy 读旧版层的快照键.
func (r *Recovery) readLegacy(ctx context.Context) ([]model.Record, error) {
	if r.legacyKV == nil {
		return nil, nil
	}

	raw, err := r.legacyKV.Get(ctx, r.snapshotKey)
	if err != nil {
		if errors.Is(err, kvc.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	var recs []model.Record
	if err := sonic.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decode legacy snapshot: %w", err)
	}

	return recs, nil
}

// readEmergency 读应急层的最新快照.
func (r *Recovery) readEmergency(ctx context.Context) ([]model.Record, error) {
	if r.emergencyKV == nil {
		return nil, nil
	}

	return emergency.ReadLatest(ctx, r.emergencyKV)
}

// mergeRecords 按 id 合并多个层级，lastSaved 大者胜，平手保留先到的层.
// 结果按有效保存时间降序，平手按 id 升序保证确定性.
func mergeRecords(tiers ...[]model.Record) []model.Record {
	byID := make(map[string]model.Record)

	for _, tier := range tiers {
		for _, rec := range tier {
			if rec.ID == "" {
				continue
			}

			existing, ok := byID[rec.ID]
			if !ok || rec.LastSaved > existing.LastSaved {
				byID[rec.ID] = rec
			}
		}
	}

	merged := make([]model.Record, 0, len(byID))
	for _, rec := range byID {
		merged = append(merged, rec)
	}

	sort.Slice(merged, func(i, j int) bool {
		si, sj := merged[i].EffectiveSaved(), merged[j].EffectiveSaved()
		if si != sj {
			return si > sj
		}

		return merged[i].ID < merged[j].ID
	})

	return merged
}

// Diagnose 对三个层级做可写性探测并汇总内容统计.
// 除探针键外只读，不改动任何业务数据.
func (r *Recovery) Diagnose(ctx context.Context) types.DiagnoseReport {
	ctx, span := tracing.StartSpan(ctx, "recovery.Diagnose")
	defer span.End()

	report := types.DiagnoseReport{
		RecordCounts: make(map[string]int),
		ByteSizes:    make(map[string]int64),
	}

	report.Tiers = append(report.Tiers, r.probePrimary(ctx, &report))
	report.Tiers = append(report.Tiers, r.probeKV(ctx, TierLegacy, r.legacyKV, &report))
	report.Tiers = append(report.Tiers, r.probeKV(ctx, TierEmergency, r.emergencyKV, &report))

	return report
}

// probePrimary 探测主存储：写入再删除一个一次性设置项.
func (r *Recovery) probePrimary(ctx context.Context, report *types.DiagnoseReport) types.TierHealth {
	health := types.TierHealth{Tier: TierPrimary}
	if r.store == nil {
		health.Error = "not configured"

		return health
	}

	// 配额上限来自配置，层级病着也要在报告里给出
	report.QuotaTotalBytes = r.store.QuotaBytes()

	start := time.Now()

	err := r.store.SetSetting(ctx, probeSettingName, time.Now().UnixMilli())
	if err == nil {
		err = r.store.DeleteSetting(ctx, probeSettingName)
	}

	health.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		health.Error = err.Error()

		return health
	}

	health.Healthy = true

	if stats, err := r.store.Stats(ctx); err == nil {
		report.RecordCounts[TierPrimary] = stats.RecordCount
		report.ByteSizes[TierPrimary] = stats.TotalPhotoBytes
		report.QuotaUsedBytes = stats.TotalPhotoBytes
	}

	return health
}

// probeKV 探测一个 KV 层级：写入再删除探针键，并统计该层快照内容.
func (r *Recovery) probeKV(ctx context.Context, tier string, kvStore kvc.KVStore, report *types.DiagnoseReport) types.TierHealth {
	health := types.TierHealth{Tier: tier}
	if kvStore == nil {
		health.Error = "not configured"

		return health
	}

	start := time.Now()

	err := kvStore.Set(ctx, ProbeKey, []byte("ok"), 0)
	if err == nil {
		err = kvStore.Delete(ctx, ProbeKey)
	}

	health.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		health.Error = err.Error()

		return health
	}

	health.Healthy = true

	r.countKVTier(ctx, tier, kvStore, report)

	return health
}

// countKVTier 统计 KV 层级的快照记录数与字节数.
func (r *Recovery) countKVTier(ctx context.Context, tier string, kvStore kvc.KVStore, report *types.DiagnoseReport) {
	key := r.snapshotKey
	if tier == TierEmergency {
		key = emergency.LatestKey
	}

	raw, err := kvStore.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvc.ErrNotFound) {
			nlog.Logger().Warn().Err(err).Str("tier", tier).Msg("diagnose snapshot read failed")
		}

		return
	}

	report.ByteSizes[tier] = int64(len(raw))

	switch tier {
	case TierEmergency:
		var snap emergency.Snapshot
		if sonic.Unmarshal(raw, &snap) == nil {
			report.RecordCounts[tier] = len(snap.Records)
		}
	default:
		var recs []model.Record
		if sonic.Unmarshal(raw, &recs) == nil {
			report.RecordCounts[tier] = len(recs)
		}
	}
}
