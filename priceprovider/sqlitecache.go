// FILE: sqlitecache.go
// Package priceprovider – optional on-disk memoization of Provider calls.
//
// Grounded on stadam23-Eve-flipper's use of modernc.org/sqlite (the pure-Go
// SQLite driver, no cgo). Market-data acquisition and caching are
// explicitly out of scope for the backtest core (§1); this cache lives
// entirely behind the Provider interface so repeated backtests over the
// same (ticker, window) don't re-parse CSVs or re-hit a remote source.
package priceprovider

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCache wraps an underlying Provider with a SQLite-backed response
// cache keyed by (ticker, start, end, kind).
type SQLiteCache struct {
	inner Provider
	db    *sql.DB
}

// NewSQLiteCache opens (creating if necessary) a cache database at path and
// wraps inner.
func NewSQLiteCache(path string, inner Provider) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("priceprovider: opening cache: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS provider_cache (
	ticker TEXT NOT NULL,
	kind   TEXT NOT NULL,
	start  TEXT NOT NULL,
	end    TEXT NOT NULL,
	payload TEXT NOT NULL,
	PRIMARY KEY (ticker, kind, start, end)
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("priceprovider: creating schema: %w", err)
	}
	return &SQLiteCache{inner: inner, db: db}, nil
}

// Close releases the underlying database handle.
func (c *SQLiteCache) Close() error { return c.db.Close() }

func cacheKey(start, end time.Time) (string, string) {
	return start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)
}

func (c *SQLiteCache) GetPrices(ctx context.Context, ticker string, start, end time.Time) ([]OHLCBar, error) {
	s, e := cacheKey(start, end)
	var payload string
	row := c.db.QueryRowContext(ctx,
		`SELECT payload FROM provider_cache WHERE ticker=? AND kind='bars' AND start=? AND end=?`,
		ticker, s, e)
	if err := row.Scan(&payload); err == nil {
		var bars []OHLCBar
		if jerr := json.Unmarshal([]byte(payload), &bars); jerr == nil {
			return bars, nil
		}
	}

	bars, err := c.inner.GetPrices(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	if bs, err := json.Marshal(bars); err == nil {
		_, _ = c.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO provider_cache(ticker, kind, start, end, payload) VALUES (?,?,?,?,?)`,
			ticker, "bars", s, e, string(bs))
	}
	return bars, nil
}

func (c *SQLiteCache) GetDividends(ctx context.Context, ticker string, start, end time.Time) ([]DividendEvent, error) {
	s, e := cacheKey(start, end)
	var payload string
	row := c.db.QueryRowContext(ctx,
		`SELECT payload FROM provider_cache WHERE ticker=? AND kind='dividends' AND start=? AND end=?`,
		ticker, s, e)
	if err := row.Scan(&payload); err == nil {
		var divs []DividendEvent
		if jerr := json.Unmarshal([]byte(payload), &divs); jerr == nil {
			return divs, nil
		}
	}

	divs, err := c.inner.GetDividends(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	if bs, err := json.Marshal(divs); err == nil {
		_, _ = c.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO provider_cache(ticker, kind, start, end, payload) VALUES (?,?,?,?,?)`,
			ticker, "dividends", s, e, string(bs))
	}
	return divs, nil
}
