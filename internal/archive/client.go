package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kline-sync/pkg/config"
	"github.com/kline-sync/pkg/models"
)

// Client downloads kline batches from the Binance Vision public archive
type Client struct {
	client *http.Client
	cfg    *config.ArchiveConfig
	logger *logrus.Entry
}

// NewClient creates a new archive client
func NewClient(cfg *config.ArchiveConfig, logger *logrus.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg:    cfg,
		logger: logger.WithField("component", "archive"),
	}
}

// FetchKlines downloads the zip archive for one task, extracts the CSV it
// contains and returns the parsed records. Returns ErrNotFound for periods
// the archive has not published.
func (c *Client) FetchKlines(ctx context.Context, symbol, interval string, task models.FetchTask) ([]models.Record, error) {
	fileURL := c.fileURL(symbol, interval, task)

	c.logger.WithFields(logrus.Fields{
		"symbol":      symbol,
		"interval":    interval,
		"granularity": task.Granularity,
		"period":      task.PeriodLabel(),
	}).Debug("Fetching archive file")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to the body
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s %s for %s: %w", task.Granularity, task.PeriodLabel(), symbol, ErrNotFound)
	case http.StatusTooManyRequests:
		return nil, &FetchError{StatusCode: resp.StatusCode, URL: fileURL, RateLimited: true}
	default:
		return nil, &FetchError{StatusCode: resp.StatusCode, URL: fileURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive body: %w", err)
	}

	records, err := parseZip(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse archive %s: %w", fileURL, err)
	}

	c.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"period": task.PeriodLabel(),
		"count":  len(records),
	}).Debug("Fetched archive file")

	return records, nil
}

// fileURL builds the archive path, e.g.
// data/spot/monthly/klines/BTCUSDT/1m/BTCUSDT-1m-2024-01.zip
func (c *Client) fileURL(symbol, interval string, task models.FetchTask) string {
	symbol = strings.ToUpper(symbol)
	fileName := fmt.Sprintf("%s-%s-%s.zip", symbol, interval, task.PeriodLabel())
	return fmt.Sprintf("%s/data/%s/%s/klines/%s/%s/%s",
		c.cfg.BaseURL,
		c.cfg.TradingType,
		task.Granularity,
		symbol,
		interval,
		fileName,
	)
}

// parseZip extracts the kline CSV from the archive zip and parses its rows
func parseZip(data []byte) ([]models.Record, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}

	var records []models.Record
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".csv") {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}

		records, err = ParseCSV(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
		}
		break
	}

	return records, nil
}

// ParseCSV reads kline rows from r. The first column is the open time in
// epoch milliseconds; the remaining columns are kept opaque. Rows whose
// first column is not numeric (stray header lines) are skipped.
func ParseCSV(r io.Reader) ([]models.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var records []models.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if len(row) == 0 {
			continue
		}

		openTime, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}

		records = append(records, models.Record{
			OpenTime: openTime,
			Fields:   append([]string(nil), row[1:]...),
		})
	}

	return records, nil
}
