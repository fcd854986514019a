package provider

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/pkg/dates"
)

// FetchInstruments scrapes the instrument listing page. Rows missing a
// code are skipped; a missing industry falls back to the Unknown sentinel
// so downstream joins never see an empty string.
func (c *Client) FetchInstruments(ctx context.Context) ([]contracts.Instrument, error) {
	body, err := c.fetch(ctx, "/center/gridlist.html")
	if err != nil {
		return nil, err
	}

	instruments, err := parseInstrumentTable(body)
	if err != nil {
		return nil, err
	}

	c.logger.WithField("count", len(instruments)).Info("fetched instrument listing")
	return instruments, nil
}

func parseInstrumentTable(body []byte) ([]contracts.Instrument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	var instruments []contracts.Instrument
	doc.Find("table.quote-table tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		code := strings.TrimSpace(cells.Eq(0).Text())
		if code == "" {
			return
		}

		inst := contracts.Instrument{
			Code:     code,
			Name:     strings.TrimSpace(cells.Eq(1).Text()),
			Industry: strings.TrimSpace(cells.Eq(2).Text()),
			Market:   strings.TrimSpace(cells.Eq(3).Text()),
		}
		if inst.Industry == "" {
			inst.Industry = contracts.UnknownIndustry
		}
		if listed := strings.TrimSpace(cells.Eq(4).Text()); listed != "" {
			if t, err := dates.Parse(listed); err == nil {
				inst.ListingDate = t
			}
		}
		instruments = append(instruments, inst)
	})

	return instruments, nil
}
