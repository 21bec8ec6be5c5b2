package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wonny/oneway/pkg/config"
	"github.com/wonny/oneway/pkg/httputil"
	"github.com/wonny/oneway/pkg/logger"
)

// Fetcher downloads yearly 1-minute CSV files into a local directory
// ⭐ SSOT: 가격 데이터 다운로드는 여기서만
type Fetcher struct {
	client *httputil.Client
	cfg    config.DataConfig
	logger *logger.Logger
}

// NewFetcher creates a fetcher. Downloads are throttled to stay friendly
// with the raw-file host.
func NewFetcher(cfg config.DataConfig, client *httputil.Client, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client: client.WithRateLimit(2),
		cfg:    cfg,
		logger: log,
	}
}

// FileName returns the canonical name of one yearly file
func (f *Fetcher) FileName(year int) string {
	return fmt.Sprintf("gemini_%s_%d_1min.csv", f.cfg.Symbol, year)
}

// FetchYear downloads a single yearly file, skipping files already on
// disk.
func (f *Fetcher) FetchYear(ctx context.Context, year int) (string, error) {
	name := f.FileName(year)
	dest := filepath.Join(f.cfg.Dir, name)

	if _, err := os.Stat(dest); err == nil {
		f.logger.WithField("file", name).Debug("Already downloaded, skipping")
		return dest, nil
	}

	if err := os.MkdirAll(f.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	url := fmt.Sprintf("%s/%s", strings.TrimRight(f.cfg.BaseURL, "/"), name)
	resp, err := f.client.Get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %d", name, resp.StatusCode)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tmp, err)
	}

	written, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}

	f.logger.WithFields(map[string]interface{}{
		"file":  name,
		"bytes": written,
	}).Info("Downloaded price history")

	return dest, nil
}

// FetchAll downloads every configured year, newest first like the source
// trace, and reports files that were fetched or already present.
func (f *Fetcher) FetchAll(ctx context.Context) ([]string, error) {
	var files []string
	for year := f.cfg.LastYear; year >= f.cfg.FirstYear; year-- {
		path, err := f.FetchYear(ctx, year)
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

// LoadLocal parses every downloaded CSV in the data directory and merges
// them into one ascending series.
func (f *Fetcher) LoadLocal() (Series, error) {
	entries, err := os.ReadDir(f.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var merged Series
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}

		file, err := os.Open(filepath.Join(f.cfg.Dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", entry.Name(), err)
		}

		series, err := ParseCSV(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry.Name(), err)
		}

		merged = append(merged, series...)
	}

	if len(merged) == 0 {
		return nil, fmt.Errorf("no csv files in %s", f.cfg.Dir)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Time.Before(merged[j].Time)
	})

	return merged, nil
}
