package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/janina-ellinghaus/audio-producer/storage"
)

var (
	minioPrefix string
	minioEnsure bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO归档管理",
	Long:  `查看归档存储桶中已生成的 MP3 文件及统计信息，或创建存储桶。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig.Minio
		if cfg.Endpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is not set")
		}
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.Endpoint, cfg.Bucket)

		archive, err := storage.NewArchive(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		if minioEnsure {
			created, err := archive.EnsureBucket(ctx)
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("存储桶 %s 已创建\n", cfg.Bucket)
			} else {
				fmt.Printf("存储桶 %s 已存在\n", cfg.Bucket)
			}
		}

		objects, stats, err := archive.List(ctx, minioPrefix)
		if err != nil {
			return err
		}
		for _, obj := range objects {
			fmt.Printf("%-60s %10s  %s\n", obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("\n共 %d 个文件, 总大小 %s", stats.TotalObjects, storage.FormatSize(stats.TotalSize))
		if !stats.LastModified.IsZero() {
			fmt.Printf(", 最后更新 %s", stats.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "归档前缀下的子路径，例如 2026/03/")
	minioCmd.Flags().BoolVar(&minioEnsure, "ensure", false, "存储桶不存在时创建")

	minioCmd.Example = `  # 列出所有归档文件
  audio-producer minio

  # 只看某个月
  audio-producer minio -p 2026/03/

  # 创建存储桶
  audio-producer minio --ensure`
}
