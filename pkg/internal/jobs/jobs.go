// Package jobs 注册应用的后台定时任务.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/JSB847123/simple-business-database/pkg/configs"
	ctxPkg "github.com/JSB847123/simple-business-database/pkg/context"
	"github.com/JSB847123/simple-business-database/pkg/internal/service"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
	"github.com/JSB847123/simple-business-database/pkg/scheduler"
)

// 任务名称，控制台任务接口用它查询与手动触发.
const (
	JobEmergencySnapshot = "emergency-snapshot"
	JobSyncPush          = "sync-push"
)

// snapshotTrigger 周期快照的触发来源标记.
const snapshotTrigger = "cron"

// Register 按配置把后台任务挂进调度器.
// appCtx 携带组件注入，任务执行时从里面取服务依赖；
// 对应功能未启用的任务直接跳过注册.
func Register(appCtx context.Context, sched *scheduler.Scheduler, cfg *configs.AppConfig) error {
	comps := ctxPkg.GetComponents(appCtx)
	if comps == nil || comps.Writer == nil {
		return fmt.Errorf("app components not initialized")
	}

	if cfg.Emergency.Enabled && cfg.Emergency.IntervalMin > 0 {
		interval := time.Duration(cfg.Emergency.IntervalMin) * time.Minute
		job := func(ctx context.Context) {
			if err := comps.Writer.PublishSnapshot(ctx, snapshotTrigger); err != nil {
				nlog.Logger().Warn().Err(err).Msg("scheduled snapshot publish failed")
			}
		}

		if err := sched.AddInterval(appCtx, JobEmergencySnapshot, interval, job); err != nil {
			return fmt.Errorf("register %s: %w", JobEmergencySnapshot, err)
		}
	}

	if cfg.Sync.Enabled && comps.Sync != nil && cfg.Sync.PushCron != "" {
		job := func(ctx context.Context) {
			report, err := service.NewSyncService(appCtx).PushRecords(ctx)
			if err != nil {
				nlog.Logger().Warn().Err(err).
					Int("pushed", report.Pushed).
					Int("failed", report.Failed).
					Msg("scheduled sync push incomplete")

				return
			}

			nlog.Logger().Info().
				Int("pushed", report.Pushed).
				Int("photos_pushed", report.PhotosPushed).
				Msg("scheduled sync push finished")
		}

		if err := sched.AddCron(appCtx, JobSyncPush, cfg.Sync.PushCron, job); err != nil {
			return fmt.Errorf("register %s: %w", JobSyncPush, err)
		}
	}

	return nil
}
