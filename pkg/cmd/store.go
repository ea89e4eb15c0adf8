package cmd

import (
	contextPkg "context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JSB847123/simple-business-database/pkg/configs"
	"github.com/JSB847123/simple-business-database/pkg/internal/migrate"
	"github.com/JSB847123/simple-business-database/pkg/internal/recovery"
	"github.com/JSB847123/simple-business-database/pkg/internal/storage"
	kvc "github.com/JSB847123/simple-business-database/pkg/internal/storage/kv"
	"github.com/JSB847123/simple-business-database/pkg/internal/store"
	"github.com/JSB847123/simple-business-database/pkg/internal/types"
	"github.com/JSB847123/simple-business-database/pkg/internal/writer"
)

// offlineRig 是离线子命令共用的最小存储装配：不起控制台、不起调度器.
type offlineRig struct {
	manager  *storage.Manager
	st       *store.Store
	legacyKV kvc.KVStore
	rec      *recovery.Recovery
	cfg      *configs.AppConfig
}

// openOffline 装配离线存储.调用方负责 close.
func openOffline(ctx contextPkg.Context) (*offlineRig, error) {
	manager, err := storage.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	cfg := configs.GetConfig()

	var legacyKV kvc.KVStore
	if lc := manager.GetLegacyKV(); lc != nil {
		legacyKV = lc
	}

	st := store.New(manager.GetDBClient(), cfg.Writer.QuotaBytes)
	if err := st.Open(ctx); err != nil {
		return nil, err
	}

	return &offlineRig{
		manager:  manager,
		st:       st,
		legacyKV: legacyKV,
		rec:      recovery.New(st, legacyKV, manager.GetEmergencyKV(), cfg.Writer.LegacySnapshotKey),
		cfg:      cfg,
	}, nil
}

func (r *offlineRig) close() {
	_ = r.manager.Close()
}

// printJSON 以缩进 JSON 打印到命令输出.
func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(b))

	return nil
}

var (
	// migrateForce 对应 migrate --force.
	migrateForce bool

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "print storage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rig, err := openOffline(ctx)
			if err != nil {
				return err
			}
			defer rig.close()

			stats, err := rig.st.Stats(ctx)
			if err != nil {
				return err
			}

			out := struct {
				types.StoreStats
				QuotaTotalBytes int64 `json:"quota_total_bytes"`
			}{stats, rig.st.QuotaBytes()}

			return printJSON(cmd, out)
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "run the legacy tier migration once",
		Long: "把旧版扁平层级中的记录与内嵌照片搬进主存储并打印迁移报告." +
			"已完成的迁移默认跳过，--force 清掉完成标志后重跑.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rig, err := openOffline(ctx)
			if err != nil {
				return err
			}
			defer rig.close()

			engine := migrate.New(rig.st, rig.legacyKV)

			if migrateForce {
				if err := engine.ForceRerun(ctx); err != nil {
					return err
				}
			}

			report, err := engine.Run(ctx)
			if err != nil {
				return err
			}

			return printJSON(cmd, report)
		},
	}

	diagnoseCmd = &cobra.Command{
		Use:   "diagnose",
		Short: "probe all storage tiers and print a health report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rig, err := openOffline(ctx)
			if err != nil {
				return err
			}
			defer rig.close()

			return printJSON(cmd, rig.rec.Diagnose(ctx))
		},
	}

	recoverCmd = &cobra.Command{
		Use:   "recover",
		Short: "merge all tiers and dump the recovered records as JSON",
		Long: "读取主存储、旧版层级与应急快照，按修复规则合并后输出全部记录." +
			"控制台起不来时可以用它把数据捞出设备（重定向到文件即可）.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rig, err := openOffline(ctx)
			if err != nil {
				return err
			}
			defer rig.close()

			return printJSON(cmd, rig.rec.RecoverAll(ctx))
		},
	}

	flushCmd = &cobra.Command{
		Use:   "flush",
		Short: "rewrite the newest record and the legacy snapshot",
		Long: "装载合并后的记录并保底落盘一次：最新记录重写主存储，" +
			"全量快照镜像到旧版层级.离线运行时不发应急快照事件.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rig, err := openOffline(ctx)
			if err != nil {
				return err
			}
			defer rig.close()

			w := writer.New(rig.st, rig.legacyKV, nil, &rig.cfg.Writer)
			w.Hydrate(rig.rec.RecoverAll(ctx))

			return printJSON(cmd, w.Flush(ctx))
		},
	}
)

// registerStoreCommands 注册离线存储命令.
func registerStoreCommands() {
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "clear the done flag and rerun")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(flushCmd)
}
