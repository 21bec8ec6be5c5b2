package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"
)

// Gemini CSV column layout, after the one-line source banner:
// Unix Timestamp,Date,Symbol,Open,High,Low,Close,Volume
const geminiColumns = 8

// ParseCSV reads a gemini-format yearly price file. The leading banner
// row and the header row are both tolerated, rows are returned ascending
// by time regardless of file order.
func ParseCSV(r io.Reader) (Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // banner row has a single field

	var series Series
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line+1, err)
		}
		line++

		if len(record) != geminiColumns {
			// Source banner or stray row
			continue
		}
		if _, err := strconv.ParseFloat(record[0], 64); err != nil {
			// Header row
			continue
		}

		candle, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		series = append(series, candle)
	}

	if len(series) == 0 {
		return nil, fmt.Errorf("no candles found")
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Time.Before(series[j].Time)
	})

	return series, nil
}

func parseRow(record []string) (Candle, error) {
	ts, err := strconv.ParseFloat(record[0], 64)
	if err != nil {
		return Candle{}, fmt.Errorf("bad timestamp %q: %w", record[0], err)
	}

	// Older files carry seconds, newer ones milliseconds
	sec := int64(ts)
	if sec > 1e12 {
		sec /= 1000
	}

	var c Candle
	c.Time = time.Unix(sec, 0).UTC()

	fields := []struct {
		name string
		idx  int
		dst  *float64
	}{
		{"open", 3, &c.Open},
		{"high", 4, &c.High},
		{"low", 5, &c.Low},
		{"close", 6, &c.Close},
		{"volume", 7, &c.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(record[f.idx], 64)
		if err != nil {
			return Candle{}, fmt.Errorf("bad %s %q: %w", f.name, record[f.idx], err)
		}
		*f.dst = v
	}

	return c, nil
}
