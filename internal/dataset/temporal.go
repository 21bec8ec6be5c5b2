package dataset

import (
	"math"
	"time"
)

const (
	minutesPerDay = 24 * 60
	daysPerYear   = 365.2425
)

// TemporalFeatures are cyclical sine/cosine encodings of time-of-day and
// day-of-year, for predictors that want calendar structure without
// discontinuities at midnight or new year.
type TemporalFeatures struct {
	DaySin  float64
	DayCos  float64
	YearSin float64
	YearCos float64
}

// Temporal computes the cyclical encodings for one timestamp
func Temporal(t time.Time) TemporalFeatures {
	minuteOfDay := float64(t.Hour()*60 + t.Minute())
	dayOfYear := float64(t.YearDay())

	dayAngle := minuteOfDay * (2 * math.Pi / minutesPerDay)
	yearAngle := dayOfYear * (2 * math.Pi / daysPerYear)

	return TemporalFeatures{
		DaySin:  math.Sin(dayAngle),
		DayCos:  math.Cos(dayAngle),
		YearSin: math.Sin(yearAngle),
		YearCos: math.Cos(yearAngle),
	}
}
