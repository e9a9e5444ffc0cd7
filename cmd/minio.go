package cmd

import (
	"context"
	"fmt"
	"log"

	"MeetScope/config"
	"MeetScope/logger"
	"MeetScope/storage"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/cobra"
)

var minioPrefix string

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶检查",
	Long:  `检查MinIO连接并列出存储桶中的音频对象，可按前缀过滤。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始连接MinIO服务器...")

		// 加载配置
		cfg := config.Load()
		if cfg.MinioEndpoint == "" {
			log.Fatal("未配置 MINIO_ENDPOINT")
		}
		logger.Init(logger.Config{Level: cfg.LogLevel})
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		// 初始化MinIO客户端
		store, err := storage.NewMinioStore(cfg)
		if err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		fmt.Println("MinIO连接成功！")

		// 列出对象
		fmt.Printf("\n列出存储桶中的对象 (前缀: %s)...\n", minioPrefix)
		ctx := context.Background()
		count := 0
		var totalSize int64
		for object := range store.Client().ListObjects(ctx, store.Bucket(), minio.ListObjectsOptions{
			Prefix:    minioPrefix,
			Recursive: true,
		}) {
			if object.Err != nil {
				log.Fatalf("列出对象失败: %v", object.Err)
			}
			fmt.Printf("  %s\t%d bytes\t%s\n", object.Key, object.Size, object.LastModified.Format("2006-01-02 15:04:05"))
			count++
			totalSize += object.Size
		}
		fmt.Printf("\n共 %d 个对象，总大小 %d bytes\n", count, totalSize)

		fmt.Println("\nMinIO操作完成！")
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤对象")

	minioCmd.Example = `  # 列出所有对象
  meetscope minio

  # 按前缀过滤
  meetscope minio -p "audio/"`
}
