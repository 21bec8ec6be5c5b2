package dataset

import (
	"sort"
	"time"
)

// Resample aggregates candles into coarser buckets: first open, max
// high, min low, last close, summed volume. Buckets align to interval
// boundaries; empty buckets are omitted rather than forward-filled.
func Resample(s Series, interval time.Duration) Series {
	if interval <= 0 || len(s) == 0 {
		return s
	}

	buckets := make(map[time.Time]*Candle)
	lastSeen := make(map[time.Time]time.Time)

	for _, c := range s {
		key := c.Time.Truncate(interval)

		b, ok := buckets[key]
		if !ok {
			cp := c
			cp.Time = key
			buckets[key] = &cp
			lastSeen[key] = c.Time
			continue
		}

		if c.High > b.High {
			b.High = c.High
		}
		if c.Low < b.Low {
			b.Low = c.Low
		}
		b.Volume += c.Volume

		// Input is ascending, but tolerate merged files
		if !c.Time.Before(lastSeen[key]) {
			b.Close = c.Close
			lastSeen[key] = c.Time
		}
	}

	out := make(Series, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})

	return out
}
