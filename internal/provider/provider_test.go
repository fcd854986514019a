package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astock-tools/screener/internal/contracts"
)

func TestParseKLines(t *testing.T) {
	body := []byte(`{
		"data": {
			"code": "600519.SH",
			"klines": [
				"2025-06-25,1500.0,1520.0,1525.0,1495.0,32000,48640000.0,1.33",
				"2025-06-26,1521.0,1540.0,1543.0,1518.0,28500,43890000.0,1.32"
			]
		}
	}`)

	bars, err := parseKLines("600519.SH", body)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	first, second := bars[0], bars[1]
	assert.Equal(t, "600519.SH", first.Code)
	assert.Equal(t, time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, 1500.0, first.Open)
	assert.Equal(t, 1520.0, first.Close)
	assert.Equal(t, 1525.0, first.High)
	assert.Equal(t, 1495.0, first.Low)
	assert.Equal(t, 32000.0, first.Volume)
	assert.Equal(t, 1.33, first.PctChange)

	// Derived from the previous row.
	assert.Equal(t, 1520.0, second.PreClose)
	assert.Equal(t, 20.0, second.Change)
}

func TestParseKLines_MalformedRow(t *testing.T) {
	body := []byte(`{"data": {"klines": ["2025-06-25,1500.0"]}}`)

	_, err := parseKLines("600519.SH", body)
	assert.Error(t, err)
}

func TestParseKLines_Empty(t *testing.T) {
	bars, err := parseKLines("600519.SH", []byte(`{"data": {"klines": []}}`))
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestParseInstrumentTable(t *testing.T) {
	body := []byte(`<html><body><table class="quote-table"><tbody>
		<tr><td>600519.SH</td><td>贵州茅台</td><td>白酒</td><td>主板</td><td>2001-08-27</td></tr>
		<tr><td>300750.SZ</td><td>宁德时代</td><td></td><td>创业板</td><td></td></tr>
		<tr><td></td><td>ignored</td></tr>
	</tbody></table></body></html>`)

	instruments, err := parseInstrumentTable(body)
	require.NoError(t, err)
	require.Len(t, instruments, 2)

	assert.Equal(t, "600519.SH", instruments[0].Code)
	assert.Equal(t, "贵州茅台", instruments[0].Name)
	assert.Equal(t, "白酒", instruments[0].Industry)
	assert.Equal(t, time.Date(2001, 8, 27, 0, 0, 0, 0, time.UTC), instruments[0].ListingDate)

	// Missing industry falls back to the sentinel.
	assert.Equal(t, contracts.UnknownIndustry, instruments[1].Industry)
	assert.True(t, instruments[1].ListingDate.IsZero())
}
