package dataset

import "time"

// Candle is one OHLCV bar
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series is an ordered run of candles, ascending by time
type Series []Candle

// Closes extracts the close prices as a plain ordered sequence, the only
// shape the allocation engine consumes.
func (s Series) Closes() []float64 {
	prices := make([]float64, len(s))
	for i, c := range s {
		prices[i] = c.Close
	}
	return prices
}

// Span returns the first and last timestamps of the series
func (s Series) Span() (time.Time, time.Time) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}
	}
	return s[0].Time, s[len(s)-1].Time
}

// Window returns the sub-series within [from, to] inclusive
func (s Series) Window(from, to time.Time) Series {
	var out Series
	for _, c := range s {
		if c.Time.Before(from) || c.Time.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out
}
