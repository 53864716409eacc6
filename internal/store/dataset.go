package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/natefinch/atomic"
	"github.com/sirupsen/logrus"

	"github.com/kline-sync/pkg/models"
)

// Store reads and writes the merged per-symbol dataset files. Each
// (symbol, interval) pair owns one headerless CSV under the data directory,
// ordered by open time with no duplicate timestamps.
type Store struct {
	dir    string
	logger *logrus.Entry
}

// New creates a new dataset store rooted at dir
func New(dir string, logger *logrus.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger.WithField("component", "store"),
	}
}

// EnsureDir creates the data directory so an unwritable destination fails
// the run before any fetch happens
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", s.dir, err)
	}
	return nil
}

// Path returns the dataset file path for a (symbol, interval) pair
func (s *Store) Path(symbol, interval string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", symbol, interval))
}

// Load reads the full dataset for a pair. A missing file is an empty
// dataset, not an error.
func (s *Store) Load(symbol, interval string) ([]models.Record, error) {
	path := s.Path(symbol, interval)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var records []models.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
		}
		if len(row) == 0 {
			continue
		}

		openTime, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed timestamp %q in %s: %w", row[0], path, err)
		}

		records = append(records, models.Record{
			OpenTime: openTime,
			Fields:   row[1:],
		})
	}

	s.logger.WithFields(logrus.Fields{
		"symbol":  symbol,
		"records": len(records),
	}).Debug("Loaded dataset")

	return records, nil
}

// Persist rewrites the dataset file in one shot. The new content is built
// fully in memory and swapped in with a write-then-rename, so a crash mid
// write leaves the previous file intact.
func (s *Store) Persist(symbol, interval string, records []models.Record) error {
	if err := s.EnsureDir(); err != nil {
		return err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	for _, r := range records {
		row := append([]string{strconv.FormatInt(r.OpenTime, 10)}, r.Fields...)
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	path := s.Path(symbol, interval)
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write dataset %s: %w", path, err)
	}

	s.logger.WithFields(logrus.Fields{
		"symbol":  symbol,
		"records": len(records),
		"path":    path,
	}).Debug("Persisted dataset")

	return nil
}

// Coverage derives the set of calendar dates represented in the records.
// Recomputed from the dataset on every run rather than persisted.
func Coverage(records []models.Record) models.Coverage {
	coverage := make(models.Coverage, len(records))
	for _, r := range records {
		coverage.Add(r.Date())
	}
	return coverage
}

// Merge combines existing and incoming records into one dataset,
// deduplicated by open time and sorted ascending. On a timestamp collision
// the incoming record wins: the remote archive is the source of truth. An
// empty incoming set returns existing unchanged.
func Merge(existing, incoming []models.Record) []models.Record {
	if len(incoming) == 0 {
		return existing
	}

	byTime := make(map[int64]models.Record, len(existing)+len(incoming))
	for _, r := range existing {
		byTime[r.OpenTime] = r
	}
	for _, r := range incoming {
		byTime[r.OpenTime] = r
	}

	merged := make([]models.Record, 0, len(byTime))
	for _, r := range byTime {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].OpenTime < merged[j].OpenTime
	})

	return merged
}
