package cmd

import (
	"MeetScope/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动MeetScope服务器",
	Long:  `启动会议智能系统的HTTP服务器，提供上传、查询与分析流水线服务`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
