package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/oneway/internal/algorithm"
	"github.com/wonny/oneway/internal/dataset"
	"github.com/wonny/oneway/internal/metrics"
	"github.com/wonny/oneway/internal/results"
	"github.com/wonny/oneway/pkg/logger"
)

// Engine replays the one-way trading algorithm over historical weekly
// episodes
// ⭐ SSOT: 백테스팅 실행은 여기서만
type Engine struct {
	repo   results.Repository
	logger *logger.Logger
}

// Config holds backtest configuration
type Config struct {
	StartDate time.Time
	EndDate   time.Time
	Params    algorithm.Params
	Oracle    algorithm.Oracle // nil with λ=1 means pure worst-case
	OracleTag string           // label persisted with the run
	Resample  time.Duration    // candle interval fed to the engine, 0 keeps input resolution
}

// Outcome bundles a finished run with its per-episode breakdown
type Outcome struct {
	Run      *results.Run
	Episodes []results.EpisodeResult
}

// NewEngine creates a backtest engine. A nil repository disables
// persistence; results are still returned to the caller.
func NewEngine(repo results.Repository, log *logger.Logger) *Engine {
	return &Engine{repo: repo, logger: log}
}

// Run executes a backtest over the weekly episodes inside the configured
// date range. One allocation engine is carried through the whole run so
// its episode history keeps growing and the oracle sees every prior week.
func (e *Engine) Run(ctx context.Context, series dataset.Series, cfg Config) (*Outcome, error) {
	e.logger.WithFields(map[string]interface{}{
		"start_date": cfg.StartDate.Format("2006-01-02"),
		"end_date":   cfg.EndDate.Format("2006-01-02"),
		"lower":      cfg.Params.LowerBound,
		"upper":      cfg.Params.UpperBound,
		"lambda":     cfg.Params.Lambda,
		"candles":    len(series),
	}).Info("Starting backtest")

	startTime := time.Now()

	if cfg.Resample > 0 {
		series = dataset.Resample(series, cfg.Resample)
	}

	allocator, err := algorithm.NewEngine(cfg.Params, nil, cfg.Oracle, e.logger)
	if err != nil {
		return nil, fmt.Errorf("build allocation engine: %w", err)
	}

	run := &results.Run{
		ID:         generateRunID(),
		CreatedAt:  time.Now(),
		StartDate:  cfg.StartDate,
		EndDate:    cfg.EndDate,
		LowerBound: cfg.Params.LowerBound,
		UpperBound: cfg.Params.UpperBound,
		Lambda:     cfg.Params.Lambda,
		Oracle:     cfg.OracleTag,
	}
	if run.Oracle == "" {
		run.Oracle = "none"
	}

	var episodes []results.EpisodeResult
	ratioSum := 0.0

	weeks := dataset.Weeks(series, cfg.StartDate, cfg.EndDate)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		week, ok := weeks.Next()
		if !ok {
			break
		}

		// Capture the prediction the engine is about to use, for the
		// per-episode report
		var prediction *float64
		if cfg.Oracle != nil {
			if p, predicted := cfg.Oracle.Predict(allocator.History()); predicted {
				prediction = &p
			}
		}

		instance := algorithm.Episode(week.Closes())
		result, err := allocator.Allocate(instance)
		if err != nil {
			return nil, fmt.Errorf("episode starting %s: %w",
				week[0].Time.Format("2006-01-02"), err)
		}
		allocator.Reset()

		optimum := instance[0]
		for _, p := range instance[1:] {
			if p > optimum {
				optimum = p
			}
		}
		ratio := result.Profit / optimum

		metrics.ObserveEpisode(result.HoldSteps, result.PartialSteps, result.AllInSteps, result.SolverFallbacks)

		episodes = append(episodes, results.EpisodeResult{
			RunID:           run.ID,
			Index:           len(episodes),
			WeekStart:       week[0].Time,
			Steps:           result.Steps,
			Profit:          result.Profit,
			Optimum:         optimum,
			Ratio:           ratio,
			Prediction:      prediction,
			SolverFallbacks: result.SolverFallbacks,
		})

		run.TotalProfit += result.Profit
		ratioSum += ratio
		if run.WorstRatio == 0 || ratio < run.WorstRatio {
			run.WorstRatio = ratio
		}
	}

	if len(episodes) == 0 {
		return nil, fmt.Errorf("no complete weekly episodes between %s and %s",
			cfg.StartDate.Format("2006-01-02"), cfg.EndDate.Format("2006-01-02"))
	}

	run.EpisodeCount = len(episodes)
	run.MeanRatio = ratioSum / float64(len(episodes))
	run.Duration = time.Since(startTime)

	metrics.RunDuration.Observe(run.Duration.Seconds())

	if e.repo != nil {
		if err := e.repo.SaveRun(ctx, run, episodes); err != nil {
			return nil, fmt.Errorf("persist run: %w", err)
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"run_id":      run.ID,
		"episodes":    run.EpisodeCount,
		"mean_ratio":  fmt.Sprintf("%.4f", run.MeanRatio),
		"worst_ratio": fmt.Sprintf("%.4f", run.WorstRatio),
		"duration":    run.Duration.Seconds(),
	}).Info("Backtest completed")

	return &Outcome{Run: run, Episodes: episodes}, nil
}

// generateRunID generates a unique run ID
func generateRunID() string {
	return fmt.Sprintf("run_%s", uuid.NewString()[:8])
}
