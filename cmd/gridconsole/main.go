package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rzpsarthak13/gridconsole/internal/logging"
	"github.com/rzpsarthak13/gridconsole/pkg/gridconsole"
)

var (
	configPath string
	verbose    bool

	cfg    *gridconsole.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gridconsole",
	Short: "Paginated data grid over a record store",
	Long: `gridconsole serves a seeded record store over HTTP and browses it in a
terminal data grid with filtering, sorting, pagination, inline editing and
resizable columns.

Configuration is read from a YAML or JSON file and GRIDCONSOLE_* environment
variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = gridconsole.LoadConfig(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	browseCmd.Flags().BoolVar(&browseLocal, "local", false, "Browse an in-process seeded store instead of a server")
	browseCmd.Flags().StringVar(&browseURL, "url", "", "Server base URL (overrides client.base_url)")

	historyCmd.Flags().Int64Var(&historyID, "id", 0, "Record ID")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of changes to show")
	historyCmd.Flags().StringVar(&historyDataset, "dataset", "users", "Dataset name")
	historyCmd.Flags().StringVar(&historySource, "source", historySourceDatabase, "Where to read changes from: database or kv")
	_ = historyCmd.MarkFlagRequired("id")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
