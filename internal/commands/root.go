package commands

import (
	"github.com/spf13/cobra"

	"github.com/kline-sync/pkg/config"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kline-sync",
	Short: "Incremental Binance kline archive synchronizer",
	Long: `Synchronizes local kline datasets with the Binance Vision public archive.

The tool scans the local per-symbol dataset for covered dates, plans the
cheapest set of monthly and daily archive downloads that fills the gaps,
fetches them sequentially with rate-limit-aware backoff, and merges the new
rows into the dataset without duplicates or reordering.`,
	Version: "1.0.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
