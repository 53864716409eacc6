package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kline-sync/pkg/config"
	"github.com/kline-sync/pkg/models"
)

func monthlyTask(y int, m time.Month) models.FetchTask {
	start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return models.FetchTask{
		Granularity: models.GranularityMonthly,
		Start:       start,
		End:         start.AddDate(0, 1, 0),
	}
}

func zipWithCSV(t *testing.T, name, csvContent string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(csvContent))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func newTestClient(baseURL string) *Client {
	return NewClient(&config.ArchiveConfig{
		BaseURL:     baseURL,
		TradingType: "spot",
		Timeout:     5 * time.Second,
	}, testLogger())
}

func TestFetchKlines_Success(t *testing.T) {
	csvContent := "1704067200000,42000.1,42100.0,41900.5,42050.0,10.5\n" +
		"1704067260000,42050.0,42060.0,42000.0,42010.0,3.2\n"
	archive := zipWithCSV(t, "BTCUSDT-1m-2024-01.csv", csvContent)

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write(archive)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	records, err := client.FetchKlines(context.Background(), "BTCUSDT", "1m", monthlyTask(2024, time.January))

	require.NoError(t, err)
	assert.Equal(t, "/data/spot/monthly/klines/BTCUSDT/1m/BTCUSDT-1m-2024-01.zip", gotPath)

	require.Len(t, records, 2)
	assert.Equal(t, int64(1704067200000), records[0].OpenTime)
	assert.Equal(t, []string{"42000.1", "42100.0", "41900.5", "42050.0", "10.5"}, records[0].Fields)
	assert.Equal(t, int64(1704067260000), records[1].OpenTime)
}

func TestFetchKlines_LowercaseSymbolUppercasedInPath(t *testing.T) {
	archive := zipWithCSV(t, "ETHUSDT-1h-2024-03-05.csv", "1709596800000,3000\n")

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write(archive)
	}))
	defer srv.Close()

	day := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	task := models.FetchTask{Granularity: models.GranularityDaily, Start: day, End: day.AddDate(0, 0, 1)}

	client := newTestClient(srv.URL)
	_, err := client.FetchKlines(context.Background(), "ethusdt", "1h", task)

	require.NoError(t, err)
	assert.Equal(t, "/data/spot/daily/klines/ETHUSDT/1h/ETHUSDT-1h-2024-03-05.zip", gotPath)
}

func TestFetchKlines_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchKlines(context.Background(), "BTCUSDT", "1m", monthlyTask(2024, time.January))

	require.ErrorIs(t, err, ErrNotFound)
}

func TestFetchKlines_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchKlines(context.Background(), "BTCUSDT", "1m", monthlyTask(2024, time.January))

	require.Error(t, err)
	assert.True(t, IsRateLimit(err))
}

func TestFetchKlines_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchKlines(context.Background(), "BTCUSDT", "1m", monthlyTask(2024, time.January))

	require.Error(t, err)
	assert.False(t, IsRateLimit(err))

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
}

func TestParseCSV_SkipsHeaderRow(t *testing.T) {
	input := "open_time,open,high,low,close,volume\n" +
		"1704067200000,42000,42100,41900,42050,10\n"

	records, err := ParseCSV(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1704067200000), records[0].OpenTime)
}

func TestParseCSV_VariableFieldCounts(t *testing.T) {
	input := "1704067200000,42000,42100\n" +
		"1704067260000,42050,42060,42000,42010\n"

	records, err := ParseCSV(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Len(t, records[0].Fields, 2)
	assert.Len(t, records[1].Fields, 4)
}
