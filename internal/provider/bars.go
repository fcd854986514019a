package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/pkg/dates"
)

// klineResponse is the quote service's daily-bar payload. Each kline is a
// comma-joined record: date,open,close,high,low,volume,amount,pct_chg.
type klineResponse struct {
	Data struct {
		Code   string   `json:"code"`
		KLines []string `json:"klines"`
	} `json:"data"`
}

// FetchDailyBars fetches daily bars for one instrument, ascending by date.
// PreClose and Change are derived from consecutive rows, so the first bar
// of a fetch has no previous close.
func (c *Client) FetchDailyBars(ctx context.Context, code string, from, to time.Time) ([]contracts.Bar, error) {
	params := url.Values{}
	params.Set("secid", code)
	params.Set("klt", "101") // daily
	params.Set("beg", dates.FormatCompact(from))
	params.Set("end", dates.FormatCompact(to))

	body, err := c.fetch(ctx, "/api/qt/stock/kline/get?"+params.Encode())
	if err != nil {
		return nil, err
	}

	bars, err := parseKLines(code, body)
	if err != nil {
		return nil, fmt.Errorf("parse klines for %s: %w", code, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"ts_code": code,
		"count":   len(bars),
	}).Debug("fetched daily bars")

	return bars, nil
}

func parseKLines(code string, body []byte) ([]contracts.Bar, error) {
	var resp klineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	bars := make([]contracts.Bar, 0, len(resp.Data.KLines))
	for _, line := range resp.Data.KLines {
		fields := strings.Split(line, ",")
		if len(fields) < 8 {
			return nil, fmt.Errorf("malformed kline %q", line)
		}

		date, err := dates.Parse(fields[0])
		if err != nil {
			return nil, fmt.Errorf("kline date: %w", err)
		}

		bar := contracts.Bar{Code: code, Date: date}
		for i, dst := range []*float64{
			&bar.Open, &bar.Close, &bar.High, &bar.Low,
			&bar.Volume, &bar.Amount, &bar.PctChange,
		} {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("kline field %d in %q: %w", i+1, line, err)
			}
			*dst = v
		}
		bars = append(bars, bar)
	}

	for i := 1; i < len(bars); i++ {
		bars[i].PreClose = bars[i-1].Close
		bars[i].Change = bars[i].Close - bars[i-1].Close
	}
	return bars, nil
}
