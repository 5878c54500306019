package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"ClipDeck/config"
	"ClipDeck/db"
	"ClipDeck/media"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe [file]",
	Short: "探测视频文件",
	Long:  `对单个视频文件执行ffprobe探测，打印时长、编码和分辨率，用于排查导入失败的素材。`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		initLogging(cfg)

		// 有Redis就走缓存，没有也能直接探
		if err := db.ConnectRedis(cfg); err == nil {
			defer db.CloseRedis()
		}

		prober := media.NewFFprobeProber(cfg.FFprobePath)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		result, err := prober.Probe(ctx, args[0])
		if err != nil {
			log.Fatalf("探测失败: %v", err)
		}

		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(os.Stdout, string(out))
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
