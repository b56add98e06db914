package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"audiovault/storage"

	"github.com/spf13/cobra"
)

var blobsPrefix string

var blobsCmd = &cobra.Command{
	Use:   "blobs",
	Short: "Blob 存储管理",
	Long:  `查看和管理当前配置的 Blob 存储（本地目录或 MinIO 存储桶）中的音频文件。`,
}

var blobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出 blob",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openBlobStore(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tSIZE\tMODIFIED")
		var count int
		err = store.List(ctx, func(info storage.BlobInfo) error {
			if blobsPrefix != "" && !strings.HasPrefix(info.Key, blobsPrefix) {
				return nil
			}
			count++
			fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Key, storage.FormatSize(info.Size), info.ModTime.Format("2006-01-02 15:04:05"))
			return nil
		})
		if err != nil {
			return fmt.Errorf("列出 blob 失败: %w", err)
		}
		tw.Flush()
		fmt.Printf("\n共 %d 个文件\n", count)
		return nil
	},
}

var blobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "显示存储统计信息",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openBlobStore(ctx)
		if err != nil {
			return err
		}

		stats, err := storage.CollectStats(ctx, store)
		if err != nil {
			return fmt.Errorf("获取统计信息失败: %w", err)
		}
		fmt.Printf("文件总数: %d\n", stats.TotalObjects)
		fmt.Printf("总大小: %s\n", storage.FormatSize(stats.TotalSize))
		return nil
	},
}

var blobsRmCmd = &cobra.Command{
	Use:   "rm <key>...",
	Short: "删除 blob（不会删除数据库记录）",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openBlobStore(ctx)
		if err != nil {
			return err
		}
		for _, key := range args {
			if err := store.Delete(ctx, key); err != nil {
				return fmt.Errorf("删除 %s 失败: %w", key, err)
			}
			fmt.Printf("已删除: %s\n", key)
		}
		return nil
	},
}

func openBlobStore(ctx context.Context) (storage.Store, error) {
	cfg := loadConfig()
	fmt.Printf("Blob 后端: %s\n", cfg.BlobBackend)
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("打开 Blob 存储失败: %w", err)
	}
	return store, nil
}

func init() {
	rootCmd.AddCommand(blobsCmd)
	blobsCmd.AddCommand(blobsListCmd, blobsStatsCmd, blobsRmCmd)

	blobsListCmd.Flags().StringVarP(&blobsPrefix, "prefix", "p", "", "按 key 前缀过滤")

	blobsCmd.Example = `  # 列出所有文件
  audiovault blobs list

  # 按前缀过滤
  audiovault blobs list -p 1718000000

  # 显示统计信息
  audiovault blobs stats

  # 删除指定 blob
  audiovault blobs rm 1718000000000-0a1b2c3d4e5f.mp3`
}
