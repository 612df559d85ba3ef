// Package data provides market data loading and the rolling bar history the
// live loop, the trainer, and the paper broker share.
package data

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"

	"ensemble-trader/internal/models"
)

// csvBar is the CSV row layout for daily OHLCV exports.
type csvBar struct {
	Date   string  `csv:"Date"`
	Open   float64 `csv:"Open"`
	High   float64 `csv:"High"`
	Low    float64 `csv:"Low"`
	Close  float64 `csv:"Close"`
	Volume int64   `csv:"Volume"`
}

// dateLayouts are tried in order when parsing the Date column.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02-01-2006",
}

// LoadCandlesCSV loads OHLCV bars from a CSV file, sorted by timestamp.
func LoadCandlesCSV(path string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var rows []*csvBar
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		ts, err := parseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("parsing date %q: %w", row.Date, err)
		}
		candles = append(candles, models.Candle{
			Timestamp: ts,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	return candles, nil
}

// SaveCandlesCSV writes bars to a CSV file, newest last. Used by the daily
// data refresh to maintain the rolling on-disk window.
func SaveCandlesCSV(path string, candles []models.Candle) error {
	rows := make([]*csvBar, len(candles))
	for i, c := range candles {
		rows[i] = &csvBar{
			Date:   c.Timestamp.Format("2006-01-02"),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
