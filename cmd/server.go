package cmd

import (
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 audiovault 服务器",
	Long:  `启动 audiovault 的 HTTP 服务器，提供上传、列表、区间流式播放和用户认证接口`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
