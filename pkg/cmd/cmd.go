// Package cmd contains the command line applications for the project.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JSB847123/simple-business-database/pkg/configs"
)

var (
	// configPath 由 --config 指定，默认当前目录.
	configPath string
	// debug 控制 config debug 一类命令的冗余输出.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "sbdb",
		Short: "A field survey record keeper with local-first persistence",
		Long: "sbdb 管理现场采集设备上的营业数据库记录与照片：" +
			"本地三层持久化、旧版数据迁移、应急快照恢复与可选的远端推送.",
		// 离线子命令（stats、migrate 等）自己装配存储，这里只准备配置
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configs.InitConfig(configPath)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./", "config file or directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose command output")

	registerServeCommands()
	registerStoreCommands()
	registerSyncCommands()
	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
