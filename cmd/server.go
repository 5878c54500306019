package cmd

import (
	"log"

	"ClipDeck/config"
	"ClipDeck/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动编辑引擎",
	Long:  `启动ClipDeck编辑引擎进程，在本地回环地址提供HTTP API和WebSocket，供界面端接入。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		initLogging(cfg)
		if err := server.Start(cfg); err != nil {
			log.Fatalf("engine exited: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
