package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	ctxPkg "github.com/JSB847123/simple-business-database/pkg/context"
	"github.com/JSB847123/simple-business-database/pkg/internal/service"
	"github.com/JSB847123/simple-business-database/pkg/internal/syncapi"
	"github.com/JSB847123/simple-business-database/pkg/internal/writer"
)

var (
	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "push all local records to the sync server once",
		Long: "装载合并后的记录并整表推送到远端 CRUD API，打印推送报告." +
			"本地是权威数据源，推送只上行不回拉.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rig, err := openOffline(ctx)
			if err != nil {
				return err
			}
			defer rig.close()

			if !rig.cfg.Sync.Enabled {
				return fmt.Errorf("sync is disabled, set sync.enabled=true (or SBDB_SYNC_ENABLED=1) first")
			}

			w := writer.New(rig.st, rig.legacyKV, nil, &rig.cfg.Writer)
			w.Hydrate(rig.rec.RecoverAll(ctx))

			ctx = ctxPkg.WithStorageManager(ctx, rig.manager)
			ctx = ctxPkg.WithComponents(ctx, &ctxPkg.Components{
				Store:  rig.st,
				Writer: w,
				Sync:   syncapi.NewClient(&rig.cfg.Sync),
			})

			report, err := service.NewSyncService(ctx).PushRecords(ctx)
			if err != nil {
				// 部分推送也要让人看到推了多少
				_ = printJSON(cmd, report)

				return err
			}

			return printJSON(cmd, report)
		},
	}
)

// registerSyncCommands 注册同步命令.
func registerSyncCommands() {
	rootCmd.AddCommand(syncCmd)
}
