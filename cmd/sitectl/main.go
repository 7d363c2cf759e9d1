// sitectl：离线查看与导入筛查点数据的命令行工具
package main

import (
	"fmt"
	"os"

	"screening-map/internal/config"
	"screening-map/internal/logger"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sitectl",
		Short:         "Inspect, filter and import screening-site data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadDotenv()
			logger.SetupWriter(cmd.ErrOrStderr(), os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
		},
	}
	root.AddCommand(newAggregateCmd(), newFilterCmd(), newZonesCmd(), newImportCmd(), newTicketsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sitectl:", err)
		os.Exit(1)
	}
}
