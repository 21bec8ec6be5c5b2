package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wonny/oneway/internal/dataset"
	"github.com/wonny/oneway/pkg/config"
	"github.com/wonny/oneway/pkg/httputil"
	"github.com/wonny/oneway/pkg/logger"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "가격 데이터 다운로드",
	Long: `Gemini 연간 1분봉 CSV 파일을 로컬 디렉터리로 다운로드합니다.

이미 존재하는 파일은 건너뜁니다. 다운로드는 원본 소스와 같이
최신 연도부터 시작합니다.

Example:
  go run ./cmd/oneway fetch
  go run ./cmd/oneway fetch --year 2021
  go run ./cmd/oneway fetch list`,
	RunE: runFetch,
}

var fetchListCmd = &cobra.Command{
	Use:   "list",
	Short: "다운로드 가능한 파일 목록",
	Long: `데이터 호스트의 인덱스 페이지를 스크랩하여 실제로 제공되는
연간 CSV 파일 목록을 출력합니다.

Example:
  go run ./cmd/oneway fetch list`,
	RunE: runFetchList,
}

var (
	fetchYear int
)

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.AddCommand(fetchListCmd)

	// Flags
	fetchCmd.Flags().IntVar(&fetchYear, "year", 0, "특정 연도만 다운로드 (기본: 전체)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Oneway Data Fetcher ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	client := httputil.New(log)
	fetcher := dataset.NewFetcher(cfg.Data, client, log)

	ctx := context.Background()

	if fetchYear != 0 {
		path, err := fetcher.FetchYear(ctx, fetchYear)
		if err != nil {
			PrintError(fmt.Sprintf("Download failed: %v", err))
			return err
		}
		PrintSuccess(fmt.Sprintf("Downloaded %s", filepath.Base(path)))
		return nil
	}

	fmt.Printf("\n📥 Fetching %s %d-%d into %s\n\n",
		cfg.Data.Symbol, cfg.Data.FirstYear, cfg.Data.LastYear, cfg.Data.Dir)

	files, err := fetcher.FetchAll(ctx)
	if err != nil {
		PrintError(fmt.Sprintf("Download failed after %d files: %v", len(files), err))
		return err
	}

	for _, f := range files {
		fmt.Printf("   • %s\n", filepath.Base(f))
	}
	PrintSuccess(fmt.Sprintf("%d files ready", len(files)))
	return nil
}

func runFetchList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	client := httputil.New(log)
	catalog := dataset.NewCatalog(cfg.Data, client, log)

	files, err := catalog.AvailableFiles(context.Background())
	if err != nil {
		return fmt.Errorf("scrape catalog: %w", err)
	}

	fmt.Printf("📄 %d files available:\n", len(files))
	for _, f := range files {
		fmt.Printf("   • %s\n", f)
	}
	return nil
}
