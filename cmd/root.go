package cmd

import (
	"fmt"
	"os"

	"audiovault/config"
	"audiovault/logger"
	"audiovault/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "audiovault",
	Short: "audiovault is a personal audio library with range streaming.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
	SilenceUsage: true,
}

// loadConfig 读取配置并初始化日志
func loadConfig() *config.Config {
	cfg := config.Load()
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	})
	return cfg
}

func runServer() error {
	cfg := loadConfig()
	defer logger.Sync()

	logger.Info("Starting audiovault server...")
	if err := server.Start(cfg); err != nil {
		logger.Error("服务异常退出", logger.ErrorField(err))
		return err
	}
	return nil
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
