package cmd

import (
	"github.com/spf13/cobra"

	"github.com/janina-ellinghaus/audio-producer/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动转换服务器",
	Long:  `启动 HTTP 服务器，提供 /api/convert、/api/episodes 和归档下载接口`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(appConfig)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
