package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `https://www.CryptoDataDownload.com
Unix Timestamp,Date,Symbol,Open,High,Low,Close,Volume
1609459320000,2021-01-01 00:02:00,BTCUSD,29005.1,29010.0,28990.3,28995.7,1.25
1609459260000,2021-01-01 00:01:00,BTCUSD,28990.0,29008.2,28985.5,29005.1,2.10
1609459200000,2021-01-01 00:00:00,BTCUSD,28950.0,28995.0,28940.1,28990.0,3.41
`

func TestParseCSV(t *testing.T) {
	series, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, series, 3)

	// Rows come newest-first in the file but must be returned ascending
	assert.True(t, series[0].Time.Before(series[1].Time))
	assert.True(t, series[1].Time.Before(series[2].Time))

	first := series[0]
	assert.Equal(t, 28950.0, first.Open)
	assert.Equal(t, 28995.0, first.High)
	assert.Equal(t, 28940.1, first.Low)
	assert.Equal(t, 28990.0, first.Close)
	assert.Equal(t, 3.41, first.Volume)
	assert.Equal(t, 2021, first.Time.Year())
}

func TestParseCSVSecondTimestamps(t *testing.T) {
	// Older files carry epoch seconds instead of milliseconds
	csv := "Unix Timestamp,Date,Symbol,Open,High,Low,Close,Volume\n" +
		"1444262400,2015-10-08 00:00:00,BTCUSD,245.0,246.1,244.2,245.5,10.0\n"

	series, err := ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 2015, series[0].Time.Year())
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("https://banner.example\n"))
	assert.Error(t, err)
}

func TestParseCSVBadNumber(t *testing.T) {
	csv := "Unix Timestamp,Date,Symbol,Open,High,Low,Close,Volume\n" +
		"1609459200000,2021-01-01 00:00:00,BTCUSD,oops,29_0,28940.1,28990.0,3.41\n"

	_, err := ParseCSV(strings.NewReader(csv))
	assert.Error(t, err)
}

func TestSeriesClosesAndWindow(t *testing.T) {
	series, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	closes := series.Closes()
	assert.Equal(t, []float64{28990.0, 29005.1, 28995.7}, closes)

	from, to := series[1].Time, series[2].Time
	window := series.Window(from, to)
	assert.Len(t, window, 2)
	assert.Equal(t, series[1].Time, window[0].Time)
}
