package dataset

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/oneway/pkg/config"
	"github.com/wonny/oneway/pkg/httputil"
	"github.com/wonny/oneway/pkg/logger"
)

const fetcherCSV = "Unix Timestamp,Date,Symbol,Open,High,Low,Close,Volume\n" +
	"1609459200000,2021-01-01 00:00:00,BTCUSD,28950.0,28995.0,28940.1,28990.0,3.41\n"

func newTestFetcher(t *testing.T, baseURL string) *Fetcher {
	t.Helper()
	cfg := config.DataConfig{
		Dir:       t.TempDir(),
		BaseURL:   baseURL,
		Symbol:    "BTCUSD",
		FirstYear: 2021,
		LastYear:  2021,
	}
	log := logger.NewNop()
	return NewFetcher(cfg, httputil.New(log).DisableRetry(), log)
}

func TestFetchYearDownloadsAndCaches(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/gemini_BTCUSD_2021_1min.csv", r.URL.Path)
		fmt.Fprint(w, fetcherCSV)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	path, err := fetcher.FetchYear(context.Background(), 2021)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fetcherCSV, string(data))

	// Second fetch must hit the local copy, not the server
	_, err = fetcher.FetchYear(context.Background(), 2021)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}

func TestFetchYearServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	_, err := fetcher.FetchYear(context.Background(), 2021)
	assert.Error(t, err)
}

func TestLoadLocalMergesFiles(t *testing.T) {
	fetcher := newTestFetcher(t, "http://unused.example")

	later := "Unix Timestamp,Date,Symbol,Open,High,Low,Close,Volume\n" +
		"1609459260000,2021-01-01 00:01:00,BTCUSD,28990.0,29008.2,28985.5,29005.1,2.10\n"

	require.NoError(t, os.WriteFile(filepath.Join(fetcher.cfg.Dir, "gemini_BTCUSD_2021_1min.csv"), []byte(later), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(fetcher.cfg.Dir, "gemini_BTCUSD_2020_1min.csv"), []byte(fetcherCSV), 0o644))

	series, err := fetcher.LoadLocal()
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.True(t, series[0].Time.Before(series[1].Time), "merged series must be ascending")
}

func TestLoadLocalEmptyDir(t *testing.T) {
	fetcher := newTestFetcher(t, "http://unused.example")

	_, err := fetcher.LoadLocal()
	assert.Error(t, err)
}

func TestCatalogAvailableFiles(t *testing.T) {
	index := `<html><body>
		<a href="/data/gemini_BTCUSD_2021_1min.csv">2021</a>
		<a href="/data/gemini_BTCUSD_2020_1min.csv">2020</a>
		<a href="/data/gemini_BTCUSD_2020_1min.csv">duplicate</a>
		<a href="/data/readme.md">readme</a>
		<a href="/data/gemini_ETHUSD_2021_1min.csv">wrong symbol</a>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, index)
	}))
	defer server.Close()

	log := logger.NewNop()
	cfg := config.DataConfig{Symbol: "BTCUSD", IndexURL: server.URL}
	catalog := NewCatalog(cfg, httputil.New(log).DisableRetry(), log)

	files, err := catalog.AvailableFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini_BTCUSD_2021_1min.csv", "gemini_BTCUSD_2020_1min.csv"}, files)
}

func TestCatalogNoMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><a href='/other.txt'>x</a></body></html>")
	}))
	defer server.Close()

	log := logger.NewNop()
	cfg := config.DataConfig{Symbol: "BTCUSD", IndexURL: server.URL}
	catalog := NewCatalog(cfg, httputil.New(log).DisableRetry(), log)

	_, err := catalog.AvailableFiles(context.Background())
	assert.Error(t, err)
}
