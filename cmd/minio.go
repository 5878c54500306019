package cmd

import (
	"context"
	"fmt"
	"log"

	"ClipDeck/config"
	"ClipDeck/storage"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/cobra"
)

var minioPrefix string

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶检查",
	Long:  `检查MinIO连接并列出素材桶中的对象，可用 --prefix 过滤目录。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始连接MinIO服务器...")

		cfg := config.Load()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		fmt.Println("MinIO连接成功！")

		client := storage.GetMinioClient()
		ctx := context.Background()

		var count int
		var totalSize int64
		for obj := range client.ListObjects(ctx, cfg.MinioBucket, minio.ListObjectsOptions{
			Prefix:    minioPrefix,
			Recursive: true,
		}) {
			if obj.Err != nil {
				log.Fatalf("列出对象失败: %v", obj.Err)
			}
			fmt.Printf("  %10d  %s\n", obj.Size, obj.Key)
			count++
			totalSize += obj.Size
		}
		fmt.Printf("共 %d 个对象, %d 字节\n", count, totalSize)
	},
}

func init() {
	minioCmd.Flags().StringVar(&minioPrefix, "prefix", "", "对象前缀过滤")
	rootCmd.AddCommand(minioCmd)
}
