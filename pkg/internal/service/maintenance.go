package service

import (
	"context"
	"errors"

	ctxPkg "github.com/JSB847123/simple-business-database/pkg/context"
	"github.com/JSB847123/simple-business-database/pkg/internal/migrate"
	"github.com/JSB847123/simple-business-database/pkg/internal/recovery"
	"github.com/JSB847123/simple-business-database/pkg/internal/store"
	"github.com/JSB847123/simple-business-database/pkg/internal/types"
	"github.com/JSB847123/simple-business-database/pkg/internal/writer"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
)

// ErrMigratorUnavailable 迁移引擎未装配时返回，处理器映射为 503.
var ErrMigratorUnavailable = errors.New("service: migration engine unavailable")

// MaintenanceService 汇集运维面操作：统计、诊断、迁移控制与保底落盘.
type MaintenanceService struct {
	store    *store.Store
	writer   *writer.Writer
	migrator *migrate.Engine
	recovery *recovery.Recovery
}

// NewMaintenanceService 从 context 获取依赖实例.
func NewMaintenanceService(c context.Context) *MaintenanceService {
	comps := ctxPkg.GetComponents(c)
	if comps == nil || comps.Store == nil || comps.Writer == nil {
		nlog.Logger().Fatal().Msg("app components not initialized")
	}

	return &MaintenanceService{
		store:    comps.Store,
		writer:   comps.Writer,
		migrator: comps.Migrator,
		recovery: comps.Recovery,
	}
}

// Stats 返回主存储统计加配额占用与内存工作列表长度.
func (s *MaintenanceService) Stats(ctx context.Context) (types.StatsResponse, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return types.StatsResponse{}, err
	}

	return types.StatsResponse{
		Store:           st,
		WorkingRecords:  s.writer.Len(),
		QuotaUsedBytes:  st.TotalPhotoBytes,
		QuotaTotalBytes: s.store.QuotaBytes(),
	}, nil
}

// Diagnose 执行三层存储探测，除探针键外只读.
func (s *MaintenanceService) Diagnose(ctx context.Context) types.DiagnoseReport {
	if s.recovery == nil {
		return types.DiagnoseReport{}
	}

	return s.recovery.Diagnose(ctx)
}

// MigrationStatus 返回迁移引擎的当前状态与结果汇总.
func (s *MaintenanceService) MigrationStatus() types.MigrationReport {
	if s.migrator == nil {
		return types.MigrationReport{State: string(migrate.StatePending)}
	}

	return s.migrator.Report()
}

// MigrationRerun 清除完成标记后同步重跑一次迁移扫描.
// 本地库的扫描量有限，同步执行让调用方直接拿到最终报告.
func (s *MaintenanceService) MigrationRerun(ctx context.Context) (types.MigrationReport, error) {
	if s.migrator == nil {
		return types.MigrationReport{}, ErrMigratorUnavailable
	}

	if err := s.migrator.ForceRerun(ctx); err != nil {
		return types.MigrationReport{}, err
	}

	return s.migrator.Run(ctx)
}

// Flush 执行退出前保底落盘：保存脏记录并发布应急快照.
func (s *MaintenanceService) Flush(ctx context.Context) types.FlushResult {
	return s.writer.Flush(ctx)
}
