package dataset

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/oneway/pkg/config"
	"github.com/wonny/oneway/pkg/httputil"
	"github.com/wonny/oneway/pkg/logger"
)

// Catalog discovers which yearly CSV files the data host actually serves
// by scraping its HTML index, so the fetcher does not probe year by year.
type Catalog struct {
	client *httputil.Client
	cfg    config.DataConfig
	logger *logger.Logger
}

// NewCatalog creates a catalog scraper
func NewCatalog(cfg config.DataConfig, client *httputil.Client, log *logger.Logger) *Catalog {
	return &Catalog{client: client, cfg: cfg, logger: log}
}

// AvailableFiles lists the CSV file names linked from the index page
func (c *Catalog) AvailableFiles(ctx context.Context) ([]string, error) {
	resp, err := c.client.Get(ctx, c.cfg.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("fetch index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch index: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}

	prefix := fmt.Sprintf("gemini_%s_", c.cfg.Symbol)
	seen := make(map[string]bool)
	var files []string

	doc.Find("a").Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok {
			return
		}

		name := href[strings.LastIndex(href, "/")+1:]
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".csv") {
			return
		}
		if !seen[name] {
			seen[name] = true
			files = append(files, name)
		}
	})

	c.logger.WithField("count", len(files)).Debug("Scraped data catalog")

	if len(files) == 0 {
		return nil, fmt.Errorf("no %s*.csv links on index page", prefix)
	}
	return files, nil
}
