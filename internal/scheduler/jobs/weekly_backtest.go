package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/oneway/internal/algorithm"
	"github.com/wonny/oneway/internal/backtest"
	"github.com/wonny/oneway/internal/dataset"
	"github.com/wonny/oneway/internal/predictor"
	"github.com/wonny/oneway/pkg/config"
	"github.com/wonny/oneway/pkg/logger"
)

// SeriesLoader supplies the candle series the weekly backtest replays
type SeriesLoader interface {
	LoadLocal() (dataset.Series, error)
}

// WeeklyBacktestJob replays the full local history after each data
// refresh, keeping the persisted run table current
// ⭐ SSOT: 주간 백테스트 스케줄은 이 Job에서만
type WeeklyBacktestJob struct {
	engine *backtest.Engine
	loader SeriesLoader
	cfg    config.TradingConfig
	logger *logger.Logger
}

// NewWeeklyBacktestJob creates a new weekly backtest job
func NewWeeklyBacktestJob(engine *backtest.Engine, loader SeriesLoader, cfg config.TradingConfig, log *logger.Logger) *WeeklyBacktestJob {
	return &WeeklyBacktestJob{
		engine: engine,
		loader: loader,
		cfg:    cfg,
		logger: log,
	}
}

// Name returns the job name
func (j *WeeklyBacktestJob) Name() string {
	return "weekly_backtest"
}

// Schedule returns the cron schedule (every Monday at 01:00 UTC, after
// the data refresh)
func (j *WeeklyBacktestJob) Schedule() string {
	return "0 0 1 * * MON" // with seconds
}

// Run executes the backtest over everything on disk
func (j *WeeklyBacktestJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled backtest")

	series, err := j.loader.LoadLocal()
	if err != nil {
		return fmt.Errorf("load candles: %w", err)
	}
	if len(series) == 0 {
		return fmt.Errorf("no candles on disk")
	}

	params := algorithm.Params{
		LowerBound: j.cfg.LowerBound,
		UpperBound: j.cfg.UpperBound,
		Lambda:     j.cfg.Lambda,
	}

	cfg := backtest.Config{
		StartDate: series[0].Time,
		EndDate:   series[len(series)-1].Time,
		Params:    params,
		OracleTag: "none",
		Resample:  j.cfg.Resample,
	}
	if params.Lambda < 1 {
		cfg.Oracle = predictor.NewLastMax()
		cfg.OracleTag = "lastmax"
	}

	outcome, err := j.engine.Run(ctx, series, cfg)
	if err != nil {
		return fmt.Errorf("run backtest: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":     outcome.Run.ID,
		"episodes":   outcome.Run.EpisodeCount,
		"mean_ratio": fmt.Sprintf("%.4f", outcome.Run.MeanRatio),
	}).Info("Scheduled backtest completed")

	return nil
}
