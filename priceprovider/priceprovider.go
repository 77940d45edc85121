// FILE: priceprovider.go
// Package priceprovider – the external market-data collaborator (§6).
//
// The backtest core consumes data only through the PriceProvider interface;
// acquisition and caching are explicitly out of scope for the core (§1) and
// live here instead. The `backtest` package uses the interface, the value
// types it returns, and the FetchAll/TickerSeries fan-out helper; it does
// not use CSVProvider or SQLiteCache. Algorithm-string parsing lives in
// the tradealgo package.
package priceprovider

import (
	"context"
	"fmt"
	"time"
)

// OHLCBar is one calendar day's open/high/low/close (§3.1). All fields are
// finite positive numbers; Date has no time-of-day component.
type OHLCBar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// DividendEvent is a per-share cash distribution on Date (§3.1). The same
// shape doubles as a money-market coupon when used against a BIL-style
// ticker (§4.5) — semantics are identical at this layer.
type DividendEvent struct {
	Date           time.Time
	PerShareAmount float64
}

// FetchError wraps a provider failure as a DataError-class condition (§7).
type FetchError struct {
	Ticker string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("priceprovider: fetching %s: %v", e.Ticker, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Provider is the external collaborator contract the engine consumes (§6).
// Implementations must return bars for every trading day in [start, end]
// sorted ascending by date; a gap is a fatal fetch error for the caller to
// surface as a DataError.
type Provider interface {
	GetPrices(ctx context.Context, ticker string, start, end time.Time) ([]OHLCBar, error)
	GetDividends(ctx context.Context, ticker string, start, end time.Time) ([]DividendEvent, error)
}
