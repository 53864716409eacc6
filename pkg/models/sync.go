package models

import "time"

// SyncReport summarizes one engine run for a single (symbol, interval) pair
type SyncReport struct {
	Symbol         string    `json:"symbol"`
	Interval       string    `json:"interval"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	TasksPlanned   int       `json:"tasks_planned"`
	TasksSucceeded int       `json:"tasks_succeeded"`
	TasksSkipped   int       `json:"tasks_skipped"`
	RecordsFetched int       `json:"records_fetched"`
	RecordsAdded   int       `json:"records_added"`
	DatasetUpdated bool      `json:"dataset_updated"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// SyncRun is one persisted ledger row in the sync_runs table
type SyncRun struct {
	ID             int       `json:"id"`
	Symbol         string    `json:"symbol"`
	Interval       string    `json:"interval"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	TasksPlanned   int       `json:"tasks_planned"`
	TasksSucceeded int       `json:"tasks_succeeded"`
	TasksSkipped   int       `json:"tasks_skipped"`
	RecordsAdded   int       `json:"records_added"`
	DatasetUpdated bool      `json:"dataset_updated"`
	Status         string    `json:"status"` // "completed" or "failed"
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
