package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/oneway/internal/dataset"
	"github.com/wonny/oneway/pkg/logger"
)

// DataRefreshJob downloads the yearly candle files every week
// ⭐ SSOT: 가격 데이터 갱신 스케줄은 이 Job에서만
type DataRefreshJob struct {
	fetcher *dataset.Fetcher
	logger  *logger.Logger
}

// NewDataRefreshJob creates a new data refresh job
func NewDataRefreshJob(fetcher *dataset.Fetcher, log *logger.Logger) *DataRefreshJob {
	return &DataRefreshJob{
		fetcher: fetcher,
		logger:  log,
	}
}

// Name returns the job name
func (j *DataRefreshJob) Name() string {
	return "data_refresh"
}

// Schedule returns the cron schedule (every Monday at 00:30 UTC)
func (j *DataRefreshJob) Schedule() string {
	return "0 30 0 * * MON" // with seconds
}

// Run executes the data refresh
func (j *DataRefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled data refresh")

	files, err := j.fetcher.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}

	j.logger.WithField("files", len(files)).Info("Scheduled data refresh completed")
	return nil
}
