// Package cli wires the agent together and exposes its commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/shelter-agent/internal/logger"
)

// version is stamped at build time.
var version = "dev"

var (
	flagVerbose bool
	flagConfig  string
	flagDataDir string
)

var rootCmd = &cobra.Command{
	Use:   "shelter-agent",
	Short: "Backup agent for the Shelter coordinator",
	Long: `shelter-agent runs on a host and executes backup tasks assigned by a
Shelter coordinator: scheduled backups to cloud storage, restores, and
retention enforcement. Tasks arrive over a persistent websocket control
channel.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(flagVerbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default ~/.shelter/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "path to data directory (default ~/.shelter)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
