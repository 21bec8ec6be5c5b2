package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/oneway/internal/algorithm"
	"github.com/wonny/oneway/internal/backtest"
	"github.com/wonny/oneway/internal/dataset"
	"github.com/wonny/oneway/internal/predictor"
	"github.com/wonny/oneway/pkg/logger"
)

// SeriesLoader supplies the candle series a backtest replays
type SeriesLoader interface {
	LoadLocal() (dataset.Series, error)
}

// BacktestHandler handles backtest execution endpoints
// ⭐ SSOT: 백테스트 API 핸들러는 이 구조체에서만
type BacktestHandler struct {
	engine *backtest.Engine
	loader SeriesLoader
	logger *logger.Logger
}

// NewBacktestHandler creates a new backtest handler
func NewBacktestHandler(engine *backtest.Engine, loader SeriesLoader, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		engine: engine,
		loader: loader,
		logger: log,
	}
}

// BacktestRequest represents a backtest execution request
type BacktestRequest struct {
	StartDate  string  `json:"start_date"` // YYYY-MM-DD
	EndDate    string  `json:"end_date"`   // YYYY-MM-DD
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	Lambda     float64 `json:"lambda"`
	Oracle     string  `json:"oracle"`     // none | lastmax | ewma
	EWMAAlpha  float64 `json:"ewma_alpha"` // only with oracle: ewma
	Resample   string  `json:"resample"`   // Go duration, optional
}

// Run executes a backtest over the locally stored candles
// POST /api/backtest
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := h.buildConfig(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := h.loader.LoadLocal()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load candle data")
		respondError(w, http.StatusInternalServerError, "Failed to load candle data")
		return
	}

	outcome, err := h.engine.Run(ctx, series, cfg)
	if err != nil {
		h.logger.WithError(err).Error("Backtest failed")
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Backtest failed: %v", err))
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

func (h *BacktestHandler) buildConfig(req BacktestRequest) (backtest.Config, error) {
	var cfg backtest.Config

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return cfg, fmt.Errorf("invalid 'start_date' (expected YYYY-MM-DD)")
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return cfg, fmt.Errorf("invalid 'end_date' (expected YYYY-MM-DD)")
	}
	if !start.Before(end) {
		return cfg, fmt.Errorf("'start_date' must be before 'end_date'")
	}

	if req.Lambda == 0 {
		req.Lambda = 1
	}
	p := algorithm.Params{
		LowerBound: req.LowerBound,
		UpperBound: req.UpperBound,
		Lambda:     req.Lambda,
	}
	if err := p.Validate(); err != nil {
		return cfg, err
	}

	oracle, tag, err := BuildOracle(req.Oracle, req.EWMAAlpha)
	if err != nil {
		return cfg, err
	}
	if oracle == nil && p.Lambda < 1 {
		return cfg, fmt.Errorf("'oracle' is required when lambda < 1")
	}

	var resample time.Duration
	if req.Resample != "" {
		resample, err = time.ParseDuration(req.Resample)
		if err != nil {
			return cfg, fmt.Errorf("invalid 'resample' (expected Go duration)")
		}
	}

	return backtest.Config{
		StartDate: start,
		EndDate:   end,
		Params:    p,
		Oracle:    oracle,
		OracleTag: tag,
		Resample:  resample,
	}, nil
}

// BuildOracle maps an oracle tag to its implementation. An empty or
// "none" tag yields a nil oracle.
func BuildOracle(tag string, alpha float64) (algorithm.Oracle, string, error) {
	switch tag {
	case "", "none":
		return nil, "none", nil
	case "lastmax":
		return predictor.NewLastMax(), "lastmax", nil
	case "ewma":
		if alpha <= 0 || alpha > 1 {
			return nil, "", fmt.Errorf("'ewma_alpha' must be in (0, 1]")
		}
		return predictor.NewEWMA(alpha), "ewma", nil
	default:
		return nil, "", fmt.Errorf("invalid 'oracle' (valid: none, lastmax, ewma)")
	}
}
