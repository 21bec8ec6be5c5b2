package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/oneway/internal/algorithm"
	"github.com/wonny/oneway/internal/dataset"
	"github.com/wonny/oneway/internal/predictor"
	"github.com/wonny/oneway/internal/results"
	"github.com/wonny/oneway/pkg/logger"
)

// weeksOfCandles builds daily candles covering n full weeks from a Monday
func weeksOfCandles(start time.Time, closes []float64) dataset.Series {
	s := make(dataset.Series, len(closes))
	for i, c := range closes {
		s[i] = dataset.Candle{
			Time:  start.AddDate(0, 0, i),
			Open:  c, High: c, Low: c, Close: c,
			Volume: 1,
		}
	}
	return s
}

func TestRunTwoWeeks(t *testing.T) {
	monday := time.Date(2021, 6, 7, 0, 0, 0, 0, time.UTC)

	// Week 1 climbs to the cap, week 2 stays flat
	closes := []float64{
		100, 110, 130, 150, 170, 190, 200, // week 1
		120, 120, 120, 120, 120, 120, 120, // week 2
	}
	series := weeksOfCandles(monday, closes)

	repo := results.NewMemoryRepository()
	engine := NewEngine(repo, logger.NewNop())

	outcome, err := engine.Run(context.Background(), series, Config{
		StartDate: monday,
		EndDate:   monday.AddDate(0, 0, 13),
		Params:    algorithm.Params{LowerBound: 100, UpperBound: 200, Lambda: 1},
	})
	require.NoError(t, err)

	run := outcome.Run
	assert.Equal(t, 2, run.EpisodeCount)
	assert.Equal(t, "none", run.Oracle)
	require.Len(t, outcome.Episodes, 2)

	// Week 1 reaches U: the ratio sits between the worst-case guarantee
	// and the offline optimum
	robust, err := algorithm.NewRobustThreshold(100, 200)
	require.NoError(t, err)

	first := outcome.Episodes[0]
	assert.Equal(t, monday, first.WeekStart)
	assert.InDelta(t, 200.0, first.Optimum, 1e-9)
	assert.GreaterOrEqual(t, first.Ratio, 1/robust.CompetitiveRatio()-1e-6)
	assert.LessOrEqual(t, first.Ratio, 1.0+1e-9)

	// Week 2 never moves: forced liquidation at 120, ratio 1
	second := outcome.Episodes[1]
	assert.InDelta(t, 120.0, second.Profit, 1e-6)
	assert.InDelta(t, 1.0, second.Ratio, 1e-6)

	assert.InDelta(t, run.TotalProfit, first.Profit+second.Profit, 1e-9)
	assert.InDelta(t, run.MeanRatio, (first.Ratio+second.Ratio)/2, 1e-9)

	// Run must have been persisted
	stored, err := repo.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.EpisodeCount, stored.EpisodeCount)
}

func TestRunWithOracleRecordsPredictions(t *testing.T) {
	monday := time.Date(2021, 6, 7, 0, 0, 0, 0, time.UTC)
	closes := []float64{
		100, 120, 140, 150, 160, 170, 180,
		110, 130, 150, 170, 175, 165, 160,
	}
	series := weeksOfCandles(monday, closes)

	engine := NewEngine(nil, logger.NewNop())

	outcome, err := engine.Run(context.Background(), series, Config{
		StartDate: monday,
		EndDate:   monday.AddDate(0, 0, 13),
		Params:    algorithm.Params{LowerBound: 100, UpperBound: 200, Lambda: 0.5},
		Oracle:    predictor.NewLastMax(),
		OracleTag: "lastmax",
	})
	require.NoError(t, err)
	require.Len(t, outcome.Episodes, 2)

	// First week has no history, so no prediction
	assert.Nil(t, outcome.Episodes[0].Prediction)

	// Second week predicts the first week's peak
	second := outcome.Episodes[1]
	require.NotNil(t, second.Prediction)
	assert.InDelta(t, 180.0, *second.Prediction, 1e-9)

	assert.Equal(t, "lastmax", outcome.Run.Oracle)
}

func TestRunRatiosRespectWorstCase(t *testing.T) {
	monday := time.Date(2021, 6, 7, 0, 0, 0, 0, time.UTC)

	// Adversarial week: flat at L with one terminal spike to U
	closes := []float64{100, 100, 100, 100, 100, 100, 200}
	series := weeksOfCandles(monday, closes)

	engine := NewEngine(nil, logger.NewNop())

	outcome, err := engine.Run(context.Background(), series, Config{
		StartDate: monday,
		EndDate:   monday.AddDate(0, 0, 6),
		Params:    algorithm.Params{LowerBound: 100, UpperBound: 200, Lambda: 1},
	})
	require.NoError(t, err)
	require.Len(t, outcome.Episodes, 1)

	robust, err := algorithm.NewRobustThreshold(100, 200)
	require.NoError(t, err)

	bound := 200.0 / robust.CompetitiveRatio()
	assert.GreaterOrEqual(t, outcome.Episodes[0].Profit, bound-1e-6)
	assert.LessOrEqual(t, outcome.Episodes[0].Ratio, 1.0+1e-9)
}

func TestRunNoEpisodes(t *testing.T) {
	monday := time.Date(2021, 6, 7, 0, 0, 0, 0, time.UTC)
	series := weeksOfCandles(monday, []float64{100, 100}) // far less than a week

	engine := NewEngine(nil, logger.NewNop())

	_, err := engine.Run(context.Background(), series, Config{
		StartDate: monday,
		EndDate:   monday.AddDate(0, 0, 1),
		Params:    algorithm.Params{LowerBound: 100, UpperBound: 200, Lambda: 1},
	})
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	monday := time.Date(2021, 6, 7, 0, 0, 0, 0, time.UTC)
	series := weeksOfCandles(monday, make([]float64, 14))
	for i := range series {
		series[i].Close = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(nil, logger.NewNop())

	_, err := engine.Run(ctx, series, Config{
		StartDate: monday,
		EndDate:   monday.AddDate(0, 0, 13),
		Params:    algorithm.Params{LowerBound: 100, UpperBound: 200, Lambda: 1},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunResampleReducesSteps(t *testing.T) {
	monday := time.Date(2021, 6, 7, 0, 0, 0, 0, time.UTC)

	// Hourly candles across one week
	var series dataset.Series
	for h := 0; h < 7*24; h++ {
		price := 100 + 50*math.Sin(float64(h)/10)
		if price < 100 {
			price = 100
		}
		series = append(series, dataset.Candle{
			Time:  monday.Add(time.Duration(h) * time.Hour),
			Open:  price, High: price, Low: price, Close: price,
		})
	}

	engine := NewEngine(nil, logger.NewNop())

	cfg := Config{
		StartDate: monday,
		EndDate:   monday.AddDate(0, 0, 6),
		Params:    algorithm.Params{LowerBound: 100, UpperBound: 200, Lambda: 1},
	}

	fine, err := engine.Run(context.Background(), series, cfg)
	require.NoError(t, err)

	cfg.Resample = 6 * time.Hour
	coarse, err := engine.Run(context.Background(), series, cfg)
	require.NoError(t, err)

	assert.Greater(t, fine.Episodes[0].Steps, coarse.Episodes[0].Steps)
	assert.LessOrEqual(t, coarse.Run.MeanRatio, 1.0+1e-9)
}
