package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/janina-ellinghaus/audio-producer/cache"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试限流使用的 Redis 连接，并进行基本读写操作。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig.Redis
		if cfg.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is not set, rate limiting is disabled")
		}
		fmt.Printf("Redis配置: %s, DB: %d\n", cfg.Addr, cfg.DB)

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		client, err := cache.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		fmt.Println("Redis连接成功！")

		if err := cache.Check(ctx, client); err != nil {
			return fmt.Errorf("Redis操作测试失败: %w", err)
		}
		fmt.Println("Redis基本操作测试成功！")
		fmt.Printf("限流: 每 %s 最多 %d 次转换\n", cfg.Window, cfg.RateLimit)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
