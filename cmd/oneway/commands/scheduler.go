package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/oneway/internal/backtest"
	"github.com/wonny/oneway/internal/dataset"
	"github.com/wonny/oneway/internal/scheduler"
	"github.com/wonny/oneway/internal/scheduler/jobs"
	"github.com/wonny/oneway/pkg/config"
	"github.com/wonny/oneway/pkg/httputil"
	"github.com/wonny/oneway/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 시작",
	Long: `주기적인 작업을 실행하는 스케줄러를 시작합니다.

Jobs:
  data_refresh     - 매주 월요일 00:30 UTC, 연간 CSV 갱신
  weekly_backtest  - 매주 월요일 01:00 UTC, 전체 이력 백테스트

Example:
  go run ./cmd/oneway scheduler
  go run ./cmd/oneway scheduler --run-now data_refresh`,
	RunE: runScheduler,
}

var (
	schedulerRunNow string
)

func init() {
	rootCmd.AddCommand(schedulerCmd)

	// Flags
	schedulerCmd.Flags().StringVar(&schedulerRunNow, "run-now", "", "시작 직후 한 번 실행할 작업 이름")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Oneway Scheduler ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	repo, cleanup, err := openRepository(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	client := httputil.New(log)
	fetcher := dataset.NewFetcher(cfg.Data, client, log)
	engine := backtest.NewEngine(repo, log)

	sched := scheduler.New(log)

	if err := sched.AddJob(jobs.NewDataRefreshJob(fetcher, log)); err != nil {
		return fmt.Errorf("add data refresh job: %w", err)
	}
	if err := sched.AddJob(jobs.NewWeeklyBacktestJob(engine, fetcher, cfg.Trading, log)); err != nil {
		return fmt.Errorf("add weekly backtest job: %w", err)
	}

	sched.Start()
	defer sched.Stop()

	fmt.Println("\n📋 Registered jobs:")
	for _, name := range sched.GetAllJobs() {
		fmt.Printf("   • %s\n", name)
	}

	if schedulerRunNow != "" {
		if err := sched.RunJob(schedulerRunNow); err != nil {
			return fmt.Errorf("run job now: %w", err)
		}
		PrintInfo(fmt.Sprintf("Triggered %s", schedulerRunNow))
	}

	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler...")
	return nil
}
