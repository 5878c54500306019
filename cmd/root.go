package cmd

import (
	"fmt"
	"os"

	"ClipDeck/config"
	"ClipDeck/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "clipdeck",
	Short: "ClipDeck is a desktop video editing engine.",
	Run: func(cmd *cobra.Command, args []string) {
		// 默认行为就是启动引擎
		serverCmd.Run(cmd, args)
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogging 按配置初始化全局日志，所有子命令共用
func initLogging(cfg *config.Config) {
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	})
}
