package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kline-sync/internal/archive"
	"github.com/kline-sync/internal/database"
	"github.com/kline-sync/internal/messaging"
	"github.com/kline-sync/internal/planner"
	"github.com/kline-sync/internal/store"
	"github.com/kline-sync/internal/syncer"
	"github.com/kline-sync/pkg/config"
	"github.com/kline-sync/pkg/logger"
	"github.com/kline-sync/pkg/models"
)

var (
	syncSymbol         string
	syncInterval       string
	syncStartDate      string
	syncEndDate        string
	syncRateLimitSleep int
	syncMaxBackoff     int
	syncDataDir        string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize local kline datasets with the archive",
	Long: `Synchronize local kline datasets with the Binance Vision archive.

Examples:
  # Fill gaps in the BTCUSDT 1m dataset for 2024
  kline-sync sync --symbol BTCUSDT --interval 1m --start-date 2024-01-01 --end-date 2024-12-31

  # Sync several symbols in one invocation
  kline-sync sync --symbol BTCUSDT,ETHUSDT --interval 1h --start-date 2024-06-01 --end-date 2024-06-30

  # Slow down for a heavily rate-limited network
  kline-sync sync --symbol BTCUSDT --interval 1m --start-date 2024-01-01 --end-date 2024-01-31 --rate-limit-sleep 5 --max-backoff 120`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncSymbol, "symbol", "", "Symbol or comma-separated list of symbols (e.g. BTCUSDT,ETHUSDT)")
	syncCmd.Flags().StringVar(&syncInterval, "interval", "1m", "Kline interval (1m, 5m, 15m, 1h, 1d, ...)")
	syncCmd.Flags().StringVar(&syncStartDate, "start-date", "", "Start date, inclusive (YYYY-MM-DD)")
	syncCmd.Flags().StringVar(&syncEndDate, "end-date", "", "End date, inclusive (YYYY-MM-DD)")
	syncCmd.Flags().IntVar(&syncRateLimitSleep, "rate-limit-sleep", 1, "Initial backoff sleep in seconds, also the inter-task pacing delay")
	syncCmd.Flags().IntVar(&syncMaxBackoff, "max-backoff", 64, "Maximum backoff sleep in seconds")
	syncCmd.Flags().StringVar(&syncDataDir, "data-dir", "", "Directory holding the merged datasets (overrides SYNC_DATA_DIR)")

	syncCmd.MarkFlagRequired("symbol")
	syncCmd.MarkFlagRequired("start-date")
	syncCmd.MarkFlagRequired("end-date")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	start, err := time.Parse("2006-01-02", syncStartDate)
	if err != nil {
		return fmt.Errorf("invalid --start-date %q: %w", syncStartDate, err)
	}
	end, err := time.Parse("2006-01-02", syncEndDate)
	if err != nil {
		return fmt.Errorf("invalid --end-date %q: %w", syncEndDate, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flags override the environment defaults
	if syncDataDir != "" {
		cfg.Sync.DataDir = syncDataDir
	}
	if cmd.Flags().Changed("rate-limit-sleep") {
		cfg.Sync.RateLimitSleep = time.Duration(syncRateLimitSleep) * time.Second
	}
	if cmd.Flags().Changed("max-backoff") {
		cfg.Sync.MaxBackoff = time.Duration(syncMaxBackoff) * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	st := store.New(cfg.Sync.DataDir, log)
	pl := planner.New(log)
	client := archive.NewClient(&cfg.Archive, log)
	engine := syncer.New(&cfg.Sync, st, pl, client, clockwork.NewRealClock(), log)

	ctx := context.Background()

	var ledger *database.MySQLClient
	if cfg.MySQL.Enabled {
		ledger, err = database.NewMySQLClient(&cfg.MySQL, cfg.GetMySQLDSN(), log)
		if err != nil {
			return fmt.Errorf("failed to create MySQL client: %w", err)
		}
		defer ledger.Close()

		if err := ledger.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare sync ledger: %w", err)
		}
	}

	var publisher *messaging.Publisher
	if cfg.NATS.Enabled {
		publisher, err = messaging.NewPublisher(&cfg.NATS, log)
		if err != nil {
			return fmt.Errorf("failed to create NATS publisher: %w", err)
		}
		defer publisher.Close()
	}

	var failed []string
	for _, symbol := range splitSymbols(syncSymbol) {
		symLog := log.WithField("symbol", symbol)

		report, err := engine.Sync(ctx, symbol, syncInterval, start, end)
		if err != nil {
			symLog.WithError(err).Error("Sync failed")
			failed = append(failed, symbol)

			if ledger != nil {
				failedReport := newFailedReport(symbol, syncInterval, start, end)
				if lerr := ledger.InsertSyncRun(ctx, failedReport, "failed", err.Error()); lerr != nil {
					symLog.WithError(lerr).Warn("Failed to record sync run")
				}
			}
			continue
		}

		symLog.WithFields(logrus.Fields{
			"planned":   report.TasksPlanned,
			"succeeded": report.TasksSucceeded,
			"skipped":   report.TasksSkipped,
			"added":     report.RecordsAdded,
			"updated":   report.DatasetUpdated,
		}).Info("Sync summary")

		if ledger != nil {
			if lerr := ledger.InsertSyncRun(ctx, report, "completed", ""); lerr != nil {
				symLog.WithError(lerr).Warn("Failed to record sync run")
			}
		}

		if publisher != nil && report.DatasetUpdated {
			if perr := publisher.PublishSyncReport(report); perr != nil {
				symLog.WithError(perr).Warn("Failed to publish sync report")
			}
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("sync failed for: %s", strings.Join(failed, ", "))
	}

	return nil
}

// splitSymbols expands the comma-separated --symbol value; the engine itself
// runs one symbol at a time
func splitSymbols(value string) []string {
	var symbols []string
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

func newFailedReport(symbol, interval string, start, end time.Time) *models.SyncReport {
	return &models.SyncReport{
		Symbol:    symbol,
		Interval:  interval,
		StartDate: start,
		EndDate:   end,
	}
}
