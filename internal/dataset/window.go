package dataset

import (
	"time"
)

// Dataset bounds of the gemini BTCUSD trace
var (
	DefaultStart = time.Date(2015, 10, 8, 0, 0, 0, 0, time.UTC)
	DefaultEnd   = time.Date(2022, 3, 20, 0, 0, 0, 0, time.UTC)
)

// WeekIterator walks a series one calendar week at a time, each window
// starting on a Monday. Partial trailing weeks are dropped, matching the
// trace the episodes were defined on.
type WeekIterator struct {
	series  Series
	current time.Time
	end     time.Time
}

// Weeks creates a Monday-aligned weekly iterator over [start, end].
// Zero start/end fall back to the dataset bounds, and out-of-range
// values are clamped to them.
func Weeks(s Series, start, end time.Time) *WeekIterator {
	if start.IsZero() || start.Before(DefaultStart) {
		start = DefaultStart
	}
	if end.IsZero() || end.After(DefaultEnd) {
		end = DefaultEnd
	}

	// Advance to the first Monday
	days := (8 - int(start.Weekday())) % 7
	start = start.AddDate(0, 0, days)

	return &WeekIterator{series: s, current: start, end: end}
}

// Next returns the next one-week window. The second return is false
// once the iterator is exhausted; empty weeks (data gaps) are skipped.
func (it *WeekIterator) Next() (Series, bool) {
	for {
		weekEnd := it.current.AddDate(0, 0, 6)
		if weekEnd.After(it.end) {
			return nil, false
		}

		// Window is inclusive through the end of Sunday
		window := it.series.Window(it.current, weekEnd.Add(24*time.Hour-time.Nanosecond))
		it.current = it.current.AddDate(0, 0, 7)

		if len(window) > 0 {
			return window, true
		}
	}
}

// Start returns the Monday the iterator is positioned on
func (it *WeekIterator) Start() time.Time {
	return it.current
}
