package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JSB847123/simple-business-database/pkg/app"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "run the local console server",
		Long: "启动设备本机的控制台服务器：完成旧版迁移与三层恢复后" +
			"对外提供记录、照片与维护端点，收到退出信号时保底落盘.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.NewApp(configPath).Run()
		},
	}
)

// registerServeCommands 注册服务器命令.
func registerServeCommands() {
	rootCmd.AddCommand(serveCmd)
}
