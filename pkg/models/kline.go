package models

import (
	"time"
)

// Granularity is the batch size of a remote archive file
type Granularity string

const (
	// GranularityMonthly covers all days of one calendar month
	GranularityMonthly Granularity = "monthly"
	// GranularityDaily covers exactly one calendar day
	GranularityDaily Granularity = "daily"
)

// Record is one kline row from the archive. OpenTime is the identity key;
// the remaining CSV columns are carried opaquely in their source order.
type Record struct {
	OpenTime int64    `json:"open_time"` // epoch milliseconds
	Fields   []string `json:"fields"`
}

// Date returns the UTC calendar date the record's timestamp falls on.
func (r Record) Date() time.Time {
	return DateOf(time.UnixMilli(r.OpenTime).UTC())
}

// DateOf truncates t to its UTC calendar date (midnight).
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Coverage is the set of UTC calendar dates already represented by at least
// one record in the local dataset.
type Coverage map[time.Time]struct{}

// Add marks the date of t as covered.
func (c Coverage) Add(t time.Time) {
	c[DateOf(t)] = struct{}{}
}

// Has reports whether the date of t is covered.
func (c Coverage) Has(t time.Time) bool {
	_, ok := c[DateOf(t)]
	return ok
}

// FetchTask is one archive file to download. Start is inclusive, End
// exclusive; both are UTC midnights. For monthly tasks Start is always the
// first day of the month and the archive file spans the whole month even
// when [Start,End) is narrower.
type FetchTask struct {
	Granularity Granularity `json:"granularity"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
}

// PeriodLabel returns the label used in archive file names: "2006-01" for
// monthly tasks, "2006-01-02" for daily ones.
func (t FetchTask) PeriodLabel() string {
	if t.Granularity == GranularityMonthly {
		return t.Start.Format("2006-01")
	}
	return t.Start.Format("2006-01-02")
}
