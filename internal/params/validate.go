package params

import (
	"fmt"
	"time"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(p *Params) error {
	// === Meta ===
	if p.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Trading ===
	if p.Trading.LowerBound <= 0 {
		return ValidationError{"trading.lower_bound", "must be > 0"}
	}
	if p.Trading.UpperBound <= p.Trading.LowerBound {
		return ValidationError{"trading.upper_bound", "must be > lower_bound"}
	}
	if p.Trading.Lambda <= 0 || p.Trading.Lambda > 1 {
		return ValidationError{"trading.lambda", "must be in (0, 1]"}
	}

	switch p.Trading.Oracle {
	case "", "none":
		if p.Trading.Lambda < 1 {
			return ValidationError{"trading.oracle", "required when lambda < 1"}
		}
	case "lastmax":
	case "ewma":
		if p.Trading.EWMAAlpha <= 0 || p.Trading.EWMAAlpha > 1 {
			return ValidationError{"trading.ewma_alpha", "must be in (0, 1]"}
		}
	default:
		return ValidationError{"trading.oracle", "must be none, lastmax or ewma"}
	}

	// === Backtest ===
	start, err := time.Parse("2006-01-02", p.Backtest.StartDate)
	if err != nil {
		return ValidationError{"backtest.start_date", "must be YYYY-MM-DD"}
	}
	end, err := time.Parse("2006-01-02", p.Backtest.EndDate)
	if err != nil {
		return ValidationError{"backtest.end_date", "must be YYYY-MM-DD"}
	}
	if !start.Before(end) {
		return ValidationError{"backtest", "start_date must be before end_date"}
	}

	if p.Backtest.Resample != "" {
		d, err := time.ParseDuration(p.Backtest.Resample)
		if err != nil {
			return ValidationError{"backtest.resample", "must be a Go duration"}
		}
		if d < time.Minute {
			return ValidationError{"backtest.resample", "must be >= 1m"}
		}
	}

	// === Data ===
	if p.Data.Symbol == "" {
		return ValidationError{"data.symbol", "required"}
	}
	if p.Data.FirstYear != 0 && p.Data.LastYear != 0 && p.Data.FirstYear > p.Data.LastYear {
		return ValidationError{"data", "first_year must be <= last_year"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(p *Params) []Warning {
	var warnings []Warning

	// 좁은 가격 범위는 자명한 임계값으로 이어짐
	if p.Trading.UpperBound/p.Trading.LowerBound < 1.1 {
		warnings = append(warnings, Warning{
			Code:    "NARROW_BOUNDS",
			Message: "upper/lower < 1.1: 임계값 곡선이 거의 평탄함",
		})
	}

	// 예측 전적 신뢰 경고
	if p.Trading.Lambda < 0.1 {
		warnings = append(warnings, Warning{
			Code:    "LOW_ROBUSTNESS",
			Message: "lambda < 0.1: 잘못된 예측에 대한 보호가 거의 없음",
		})
	}

	return warnings
}
