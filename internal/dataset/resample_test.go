package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minuteCandles(start time.Time, closes ...float64) Series {
	s := make(Series, len(closes))
	for i, c := range closes {
		s[i] = Candle{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   c - 1,
			High:   c + 2,
			Low:    c - 2,
			Close:  c,
			Volume: 1,
		}
	}
	return s
}

func TestResampleFiveMinutes(t *testing.T) {
	start := time.Date(2021, 6, 7, 12, 0, 0, 0, time.UTC)
	series := minuteCandles(start, 100, 102, 98, 101, 103, 110, 108)

	out := Resample(series, 5*time.Minute)
	require.Len(t, out, 2)

	first := out[0]
	assert.Equal(t, start, first.Time)
	assert.Equal(t, 99.0, first.Open)    // open of the first minute
	assert.Equal(t, 105.0, first.High)   // max high = 103 + 2
	assert.Equal(t, 96.0, first.Low)     // min low = 98 - 2
	assert.Equal(t, 103.0, first.Close)  // close of the last minute
	assert.Equal(t, 5.0, first.Volume)   // summed

	second := out[1]
	assert.Equal(t, start.Add(5*time.Minute), second.Time)
	assert.Equal(t, 108.0, second.Close)
	assert.Equal(t, 2.0, second.Volume)
}

func TestResampleGapsOmitted(t *testing.T) {
	start := time.Date(2021, 6, 7, 12, 0, 0, 0, time.UTC)
	series := Series{
		{Time: start, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1},
		{Time: start.Add(30 * time.Minute), Open: 2, High: 2, Low: 2, Close: 2, Volume: 1},
	}

	out := Resample(series, 5*time.Minute)
	assert.Len(t, out, 2, "empty buckets are not forward-filled")
}

func TestResampleNoopInterval(t *testing.T) {
	series := minuteCandles(time.Date(2021, 6, 7, 12, 0, 0, 0, time.UTC), 1, 2, 3)
	assert.Equal(t, series, Resample(series, 0))
}
