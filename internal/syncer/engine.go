package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/kline-sync/internal/archive"
	"github.com/kline-sync/internal/planner"
	"github.com/kline-sync/internal/store"
	"github.com/kline-sync/pkg/config"
	"github.com/kline-sync/pkg/models"
)

// Fetcher abstracts the archive client for the engine
type Fetcher interface {
	FetchKlines(ctx context.Context, symbol, interval string, task models.FetchTask) ([]models.Record, error)
}

// Engine drives one synchronization run: load the dataset, plan the gaps,
// fetch each missing batch sequentially under backoff, merge and persist.
// Tasks run strictly one at a time; the archive enforces a global rate
// limit, so parallel fetches would only raise 429 pressure.
type Engine struct {
	cfg     *config.SyncConfig
	store   *store.Store
	planner *planner.Planner
	fetcher Fetcher
	backoff *archive.BackoffFetcher
	clock   clockwork.Clock
	logger  *logrus.Entry
}

// New creates a new sync engine
func New(cfg *config.SyncConfig, st *store.Store, pl *planner.Planner, fetcher Fetcher, clock clockwork.Clock, logger *logrus.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		store:   st,
		planner: pl,
		fetcher: fetcher,
		backoff: archive.NewBackoffFetcher(cfg.RateLimitSleep, cfg.MaxBackoff, clock, logger),
		clock:   clock,
		logger:  logger.WithField("component", "syncer"),
	}
}

// Sync synchronizes the local dataset for one (symbol, interval) pair with
// the archive over the inclusive date range [start, end]. A failing task is
// logged and skipped so one bad day cannot abort the whole range; the only
// fatal conditions are an invalid range, an unreadable dataset and the final
// persist.
func (e *Engine) Sync(ctx context.Context, symbol, interval string, start, end time.Time) (*models.SyncReport, error) {
	start = models.DateOf(start)
	end = models.DateOf(end)
	if end.Before(start) {
		return nil, fmt.Errorf("invalid date range: start %s is after end %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	log := e.logger.WithFields(logrus.Fields{
		"symbol":   symbol,
		"interval": interval,
	})

	report := &models.SyncReport{
		Symbol:    symbol,
		Interval:  interval,
		StartDate: start,
		EndDate:   end,
		StartedAt: e.clock.Now(),
	}

	if err := e.store.EnsureDir(); err != nil {
		return nil, err
	}

	existing, err := e.store.Load(symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	coverage := store.Coverage(existing)

	tasks := e.planner.Plan(coverage, start, end)
	report.TasksPlanned = len(tasks)

	log.WithFields(logrus.Fields{
		"start":   start.Format("2006-01-02"),
		"end":     end.Format("2006-01-02"),
		"covered": len(coverage),
		"tasks":   len(tasks),
	}).Info("Starting sync")

	windowEnd := end.AddDate(0, 0, 1)

	var incoming []models.Record
	for _, task := range tasks {
		taskLog := log.WithFields(logrus.Fields{
			"granularity": task.Granularity,
			"period":      task.PeriodLabel(),
		})
		taskLog.Info("Processing fetch task")

		var fetched []models.Record
		err := e.backoff.Do(ctx, func() error {
			records, err := e.fetcher.FetchKlines(ctx, symbol, interval, task)
			if err != nil {
				return err
			}
			fetched = records
			return nil
		})

		switch {
		case err == nil:
			report.TasksSucceeded++
			report.RecordsFetched += len(fetched)
			// Monthly files span the whole calendar month even when the
			// requested range clips it; keep only in-range rows.
			for _, r := range fetched {
				d := r.Date()
				if !d.Before(start) && d.Before(windowEnd) {
					incoming = append(incoming, r)
				}
			}
		case errors.Is(err, archive.ErrNotFound):
			// Not published yet, an expected archive gap
			report.TasksSkipped++
			taskLog.Debug("Archive file not available, skipping")
		case ctx.Err() != nil:
			return nil, err
		default:
			report.TasksSkipped++
			taskLog.WithError(err).Error("Fetch task failed, skipping")
		}

		if err := e.pace(ctx); err != nil {
			return nil, err
		}
	}

	merged := store.Merge(existing, incoming)

	if len(incoming) > 0 {
		if err := e.store.Persist(symbol, interval, merged); err != nil {
			return nil, fmt.Errorf("failed to persist dataset: %w", err)
		}
		report.DatasetUpdated = true
		report.RecordsAdded = len(merged) - len(existing)
		log.WithFields(logrus.Fields{
			"fetched": report.RecordsFetched,
			"added":   report.RecordsAdded,
			"total":   len(merged),
		}).Info("Dataset updated")
	} else {
		log.Info("No new data to add")
	}

	report.FinishedAt = e.clock.Now()
	return report, nil
}

// pace applies the fixed inter-task delay that keeps request rate polite
// even when nothing is rate limited
func (e *Engine) pace(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.clock.After(e.cfg.RateLimitSleep):
		return nil
	}
}
