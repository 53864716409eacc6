package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/kline-sync/pkg/config"
	"github.com/kline-sync/pkg/models"
)

// MySQLClient persists the sync-run ledger
type MySQLClient struct {
	db     *sql.DB
	logger *logrus.Entry
	cfg    *config.MySQLConfig
}

// NewMySQLClient creates a new MySQL client
func NewMySQLClient(cfg *config.MySQLConfig, dsn string, logger *logrus.Logger) (*MySQLClient, error) {
	logger.WithField("dsn", fmt.Sprintf("%s:***@tcp(%s:%d)/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)).Debug("Connecting to MySQL")

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	return &MySQLClient{
		db:     db,
		logger: logger.WithField("component", "mysql"),
		cfg:    cfg,
	}, nil
}

// Close closes the database connection
func (mc *MySQLClient) Close() error {
	return mc.db.Close()
}

// Health checks database health
func (mc *MySQLClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return mc.db.PingContext(ctx)
}

// EnsureSchema creates the sync_runs table if it does not exist
func (mc *MySQLClient) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS sync_runs (
			id INT AUTO_INCREMENT PRIMARY KEY,
			symbol VARCHAR(32) NOT NULL,
			` + "`interval`" + ` VARCHAR(8) NOT NULL,
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			tasks_planned INT NOT NULL DEFAULT 0,
			tasks_succeeded INT NOT NULL DEFAULT 0,
			tasks_skipped INT NOT NULL DEFAULT 0,
			records_added INT NOT NULL DEFAULT 0,
			dataset_updated TINYINT(1) NOT NULL DEFAULT 0,
			status VARCHAR(16) NOT NULL,
			error TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_symbol_interval (symbol, ` + "`interval`" + `)
		)
	`

	if _, err := mc.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create sync_runs table: %w", err)
	}

	return nil
}

// InsertSyncRun records the outcome of one sync run
func (mc *MySQLClient) InsertSyncRun(ctx context.Context, report *models.SyncReport, status, errMsg string) error {
	query := `
		INSERT INTO sync_runs (
			symbol, ` + "`interval`" + `, start_date, end_date,
			tasks_planned, tasks_succeeded, tasks_skipped,
			records_added, dataset_updated, status, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := mc.db.ExecContext(ctx, query,
		report.Symbol,
		report.Interval,
		report.StartDate,
		report.EndDate,
		report.TasksPlanned,
		report.TasksSucceeded,
		report.TasksSkipped,
		report.RecordsAdded,
		report.DatasetUpdated,
		status,
		errMsg,
	)

	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	return nil
}

// GetRecentRuns retrieves the most recent sync runs, optionally filtered by
// symbol
func (mc *MySQLClient) GetRecentRuns(ctx context.Context, symbol string, limit int) ([]*models.SyncRun, error) {
	query := `
		SELECT id, symbol, ` + "`interval`" + `, start_date, end_date,
		       tasks_planned, tasks_succeeded, tasks_skipped,
		       records_added, dataset_updated, status, COALESCE(error, ''),
		       created_at
		FROM sync_runs
	`
	args := []interface{}{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := mc.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run := &models.SyncRun{}
		err := rows.Scan(
			&run.ID,
			&run.Symbol,
			&run.Interval,
			&run.StartDate,
			&run.EndDate,
			&run.TasksPlanned,
			&run.TasksSucceeded,
			&run.TasksSkipped,
			&run.RecordsAdded,
			&run.DatasetUpdated,
			&run.Status,
			&run.Error,
			&run.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
