// FILE: csv.go
// Package priceprovider – CSV-backed reference Provider implementation.
//
// Adapted from the teacher's loadCSV in backtest.go: same header-sniffing
// (case-insensitive, tolerant of extra/missing columns) and the same
// RFC3339-or-unix-seconds flexible time parser, reused here for two series
// per ticker (OHLC bars and dividend rows) instead of one candle feed.
package priceprovider

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CSVProvider serves OHLC bars and dividends from a directory of CSV files,
// one pair of files per ticker: "<ticker>.csv" (time,open,high,low,close)
// and optionally "<ticker>.dividends.csv" (time,amount).
type CSVProvider struct {
	Dir string
}

// NewCSVProvider returns a Provider reading CSVs from dir.
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{Dir: dir}
}

func (p *CSVProvider) GetPrices(_ context.Context, ticker string, start, end time.Time) ([]OHLCBar, error) {
	path := filepath.Join(p.Dir, ticker+".csv")
	rows, err := readCSVRows(path)
	if err != nil {
		return nil, &FetchError{Ticker: ticker, Err: err}
	}

	var out []OHLCBar
	for _, row := range rows {
		ts := first(row, "time", "timestamp", "date")
		op := first(row, "open")
		hp := first(row, "high")
		lp := first(row, "low")
		cp := first(row, "close")
		if ts == "" || op == "" || cp == "" {
			continue
		}
		tt, err := parseTimeFlexible(ts)
		if err != nil {
			continue
		}
		if tt.Before(start) || tt.After(end) {
			continue
		}
		o, _ := strconv.ParseFloat(op, 64)
		h, _ := strconv.ParseFloat(hp, 64)
		l, _ := strconv.ParseFloat(lp, 64)
		c, _ := strconv.ParseFloat(cp, 64)
		if h == 0 {
			h = o
		}
		if l == 0 {
			l = o
		}
		out = append(out, OHLCBar{Date: tt, Open: o, High: h, Low: l, Close: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (p *CSVProvider) GetDividends(_ context.Context, ticker string, start, end time.Time) ([]DividendEvent, error) {
	path := filepath.Join(p.Dir, ticker+".dividends.csv")
	rows, err := readCSVRows(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &FetchError{Ticker: ticker, Err: err}
	}

	var out []DividendEvent
	for _, row := range rows {
		ts := first(row, "time", "timestamp", "date", "ex_date")
		ap := first(row, "amount", "per_share_amount", "dividend")
		if ts == "" || ap == "" {
			continue
		}
		tt, err := parseTimeFlexible(ts)
		if err != nil {
			continue
		}
		if tt.Before(start) || tt.After(end) {
			continue
		}
		a, _ := strconv.ParseFloat(ap, 64)
		out = append(out, DividendEvent{Date: tt, PerShareAmount: a})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// readCSVRows reads a generic CSV into case-insensitive header->value maps,
// exactly as the teacher's loadCSV does for candle rows.
func readCSVRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []map[string]string
	var headers []string
	rowIdx := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rowIdx == 0 {
			headers = rec
			rowIdx++
			continue
		}
		row := map[string]string{}
		for j, hcol := range headers {
			k := strings.ToLower(strings.TrimSpace(hcol))
			if j < len(rec) {
				row[k] = strings.TrimSpace(rec[j])
			}
		}
		out = append(out, row)
		rowIdx++
	}
	return out, nil
}

// parseTimeFlexible supports RFC3339, a plain date, or UNIX seconds.
func parseTimeFlexible(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse("2006-01-02", s); err == nil {
		return ts, nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time: %s", s)
}

// first returns the first non-empty value for keys in m.
func first(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}
