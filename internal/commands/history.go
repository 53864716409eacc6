package commands

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kline-sync/internal/database"
	"github.com/kline-sync/pkg/config"
	"github.com/kline-sync/pkg/logger"
)

var (
	historySymbol string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sync runs from the ledger",
	Long: `Show recent sync runs recorded in the MySQL ledger.

Requires MYSQL_ENABLED=true. Every sync run stores its report (task counts,
records added, outcome) so operators can audit what was synchronized when.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historySymbol, "symbol", "", "Filter runs by symbol")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to show")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.MySQL.Enabled {
		return fmt.Errorf("the sync ledger is disabled; set MYSQL_ENABLED=true")
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	ledger, err := database.NewMySQLClient(&cfg.MySQL, cfg.GetMySQLDSN(), log)
	if err != nil {
		return fmt.Errorf("failed to create MySQL client: %w", err)
	}
	defer ledger.Close()

	ctx := context.Background()

	if err := ledger.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare sync ledger: %w", err)
	}

	runs, err := ledger.GetRecentRuns(ctx, historySymbol, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to load sync runs: %w", err)
	}

	if len(runs) == 0 {
		log.Info("No sync runs recorded")
		return nil
	}

	for _, run := range runs {
		entry := log.WithFields(logrus.Fields{
			"symbol":    run.Symbol,
			"interval":  run.Interval,
			"range":     fmt.Sprintf("%s..%s", run.StartDate.Format("2006-01-02"), run.EndDate.Format("2006-01-02")),
			"planned":   run.TasksPlanned,
			"succeeded": run.TasksSucceeded,
			"skipped":   run.TasksSkipped,
			"added":     run.RecordsAdded,
			"updated":   run.DatasetUpdated,
			"at":        run.CreatedAt.Format("2006-01-02 15:04:05"),
		})

		if run.Status == "failed" {
			entry.WithField("error", run.Error).Warn("Sync run failed")
		} else {
			entry.Info("Sync run")
		}
	}

	return nil
}
