// Package cli implements the contentflow command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/contentflow/internal/config"
	"github.com/xiaot623/gogo/contentflow/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "contentflow",
	Short: "Content production pipeline",
	Long: `Contentflow plans a sequence of content production steps from a short
request and drives it to completion under a daily quota and a retry budget.
Runs are checkpointed and can be resumed before any step.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logLevel
		if level == "" {
			level = config.Load().LogLevel
		}
		logging.Init(level)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(versionCmd)
}
