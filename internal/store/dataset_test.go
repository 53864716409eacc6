package store

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kline-sync/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func rec(openTime int64, fields ...string) models.Record {
	return models.Record{OpenTime: openTime, Fields: fields}
}

func TestMerge_EmptyIncomingIsNoOp(t *testing.T) {
	existing := []models.Record{rec(1000, "a"), rec(2000, "b")}

	merged := Merge(existing, nil)

	assert.Equal(t, existing, merged)
}

func TestMerge_IncomingWinsOnCollision(t *testing.T) {
	existing := []models.Record{rec(1000, "stale"), rec(2000, "kept")}
	incoming := []models.Record{rec(1000, "fresh")}

	merged := Merge(existing, incoming)

	require.Len(t, merged, 2)
	assert.Equal(t, []string{"fresh"}, merged[0].Fields)
	assert.Equal(t, []string{"kept"}, merged[1].Fields)
}

func TestMerge_SortedAndDeduplicated(t *testing.T) {
	existing := []models.Record{rec(3000), rec(1000)}
	incoming := []models.Record{rec(2000), rec(3000), rec(500)}

	merged := Merge(existing, incoming)

	require.Len(t, merged, 4)
	for i := 1; i < len(merged); i++ {
		assert.Less(t, merged[i-1].OpenTime, merged[i].OpenTime)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	existing := []models.Record{rec(1000, "a")}
	incoming := []models.Record{rec(2000, "b"), rec(3000, "c")}

	once := Merge(existing, incoming)
	twice := Merge(once, incoming)

	assert.Equal(t, once, twice)
}

func TestMerge_OrderIndependentForDisjointSets(t *testing.T) {
	existing := []models.Record{rec(1000)}
	r1 := []models.Record{rec(2000), rec(4000)}
	r2 := []models.Record{rec(3000), rec(5000)}

	ab := Merge(existing, append(append([]models.Record{}, r1...), r2...))
	ba := Merge(existing, append(append([]models.Record{}, r2...), r1...))

	assert.Equal(t, ab, ba)
}

func TestCoverage_DerivedFromRecords(t *testing.T) {
	jan1 := time.Date(2024, time.January, 1, 12, 30, 0, 0, time.UTC)
	jan2 := time.Date(2024, time.January, 2, 0, 1, 0, 0, time.UTC)

	records := []models.Record{
		rec(jan1.UnixMilli()),
		rec(jan1.Add(time.Minute).UnixMilli()),
		rec(jan2.UnixMilli()),
	}

	coverage := Coverage(records)

	assert.Len(t, coverage, 2)
	assert.True(t, coverage.Has(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, coverage.Has(time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)))
	assert.False(t, coverage.Has(time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)))
}

func TestLoad_MissingFileIsEmptyDataset(t *testing.T) {
	s := New(t.TempDir(), testLogger())

	records, err := s.Load("BTCUSDT", "1m")

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPersistLoad_RoundTrip(t *testing.T) {
	s := New(t.TempDir(), testLogger())

	records := []models.Record{
		rec(1704067200000, "42000.1", "42100.0", "41900.5", "42050.0", "10.5"),
		rec(1704067260000, "42050.0", "42060.0", "42000.0", "42010.0", "3.2"),
	}

	require.NoError(t, s.Persist("BTCUSDT", "1m", records))

	loaded, err := s.Load("BTCUSDT", "1m")
	require.NoError(t, err)
	assert.Equal(t, records, loaded)
}

func TestPersist_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s := New(dir, testLogger())

	require.NoError(t, s.Persist("BTCUSDT", "1m", []models.Record{rec(1000, "x")}))

	_, err := os.Stat(s.Path("BTCUSDT", "1m"))
	assert.NoError(t, err)
}

func TestPersist_ReplacesPreviousContent(t *testing.T) {
	s := New(t.TempDir(), testLogger())

	require.NoError(t, s.Persist("BTCUSDT", "1m", []models.Record{rec(1000, "old")}))
	require.NoError(t, s.Persist("BTCUSDT", "1m", []models.Record{rec(1000, "new"), rec(2000, "more")}))

	loaded, err := s.Load("BTCUSDT", "1m")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, []string{"new"}, loaded[0].Fields)
}

func TestLoad_MalformedTimestamp(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, testLogger())

	path := s.Path("BTCUSDT", "1m")
	require.NoError(t, os.WriteFile(path, []byte("not-a-number,42000\n"), 0o644))

	_, err := s.Load("BTCUSDT", "1m")
	assert.Error(t, err)
}

func TestPath_NamingScheme(t *testing.T) {
	s := New("/data", testLogger())

	assert.Equal(t, filepath.Join("/data", "BTCUSDT_1m.csv"), s.Path("BTCUSDT", "1m"))
}
