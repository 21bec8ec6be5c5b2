package params

import "time"

// Params는 할당 전략의 전체 설정
type Params struct {
	Meta     Meta     `yaml:"meta" json:"meta"`
	Trading  Trading  `yaml:"trading" json:"trading"`
	Backtest Backtest `yaml:"backtest" json:"backtest"`
	Data     Data     `yaml:"data" json:"data"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Trading holds the threshold-function parameters
type Trading struct {
	LowerBound float64 `yaml:"lower_bound" json:"lower_bound"`
	UpperBound float64 `yaml:"upper_bound" json:"upper_bound"`
	Lambda     float64 `yaml:"lambda" json:"lambda"`
	Oracle     string  `yaml:"oracle" json:"oracle"`         // none | lastmax | ewma
	EWMAAlpha  float64 `yaml:"ewma_alpha" json:"ewma_alpha"` // only with oracle: ewma
}

// Backtest holds the episode replay window
type Backtest struct {
	StartDate string `yaml:"start_date" json:"start_date"` // YYYY-MM-DD
	EndDate   string `yaml:"end_date" json:"end_date"`     // YYYY-MM-DD
	Resample  string `yaml:"resample" json:"resample"`     // Go duration, "" keeps input resolution
}

// Data holds the candle source settings
type Data struct {
	Symbol    string `yaml:"symbol" json:"symbol"`
	FirstYear int    `yaml:"first_year" json:"first_year"`
	LastYear  int    `yaml:"last_year" json:"last_year"`
}

// StartTime parses the backtest start date
func (b Backtest) StartTime() (time.Time, error) {
	return time.Parse("2006-01-02", b.StartDate)
}

// EndTime parses the backtest end date
func (b Backtest) EndTime() (time.Time, error) {
	return time.Parse("2006-01-02", b.EndDate)
}

// ResampleInterval parses the resample duration, 0 when unset
func (b Backtest) ResampleInterval() (time.Duration, error) {
	if b.Resample == "" {
		return 0, nil
	}
	return time.ParseDuration(b.Resample)
}

// RunSnapshot 실행 스냅샷 (재현성용)
type RunSnapshot struct {
	ParamsHash string    `json:"params_hash"`
	ParamsYAML string    `json:"params_yaml"`
	StrategyID string    `json:"strategy_id"`
	RunID      string    `json:"run_id"`
	CreatedAt  time.Time `json:"created_at"`
}
