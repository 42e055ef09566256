package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "haven",
	Short: "Local behavioral crisis detection and recovery tracking",
	Long: `haven analyzes interaction traces from a local health-tracking app,
detects behavioral crisis signatures, and tracks recovery over time.
All processing happens on this machine; nothing is ever sent anywhere.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = false
}
