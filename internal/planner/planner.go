package planner

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kline-sync/pkg/models"
)

// Planner computes which archive files must be fetched to fill the gaps
// between a dataset's coverage and a requested date range
type Planner struct {
	logger *logrus.Entry
}

// New creates a new gap planner
func New(logger *logrus.Logger) *Planner {
	return &Planner{
		logger: logger.WithField("component", "planner"),
	}
}

// Plan walks the calendar months overlapping [start,end] (both inclusive
// dates) and emits one task per missing batch, in chronological order.
//
// A month whose in-range days are all absent from coverage gets a single
// monthly task, replacing up to ~30 daily requests with one. As soon as one
// day of the month is already covered the month falls back to one daily task
// per missing day: the monthly archive file is all-or-nothing, and refetching
// present days only to discard them as duplicates is worse than a few extra
// small requests.
func (p *Planner) Plan(coverage models.Coverage, start, end time.Time) []models.FetchTask {
	start = models.DateOf(start)
	end = models.DateOf(end)
	if end.Before(start) {
		return nil
	}

	var tasks []models.FetchTask

	for month := firstOfMonth(start); !month.After(end); month = month.AddDate(0, 1, 0) {
		nextMonth := month.AddDate(0, 1, 0)

		overlapStart := maxDate(month, start)
		overlapEnd := minDate(nextMonth, end.AddDate(0, 0, 1)) // exclusive

		var missing []time.Time
		anyCovered := false
		for d := overlapStart; d.Before(overlapEnd); d = d.AddDate(0, 0, 1) {
			if coverage.Has(d) {
				anyCovered = true
			} else {
				missing = append(missing, d)
			}
		}

		if len(missing) == 0 {
			continue
		}

		if !anyCovered {
			// The monthly file spans the whole calendar month even when the
			// requested range clips it; out-of-range rows are dropped later
			// by the engine's date filter.
			tasks = append(tasks, models.FetchTask{
				Granularity: models.GranularityMonthly,
				Start:       month,
				End:         nextMonth,
			})
			continue
		}

		for _, d := range missing {
			tasks = append(tasks, models.FetchTask{
				Granularity: models.GranularityDaily,
				Start:       d,
				End:         d.AddDate(0, 0, 1),
			})
		}
	}

	p.logger.WithFields(logrus.Fields{
		"start":   start.Format("2006-01-02"),
		"end":     end.Format("2006-01-02"),
		"covered": len(coverage),
		"tasks":   len(tasks),
	}).Debug("Planned fetch tasks")

	return tasks
}

func firstOfMonth(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
