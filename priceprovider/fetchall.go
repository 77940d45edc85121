// FILE: fetchall.go
// Package priceprovider – concurrent pre-loop fetch fan-out.
//
// Fetching each ticker's price/dividend series during pre-loop setup (§4.4
// step 2) is independent per ticker and happens entirely before the
// sequential daily loop begins, so it is safe to parallelize without
// touching the engine's single-threaded simulation guarantee (§5).
package priceprovider

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// TickerSeries bundles one ticker's fetched bars and dividends.
type TickerSeries struct {
	Ticker    string
	Bars      []OHLCBar
	Dividends []DividendEvent
}

// FetchAll fetches bars (and, if withDividends, dividend events) for every
// ticker concurrently and returns them keyed by ticker. The first error
// encountered cancels the remaining in-flight fetches and is returned.
func FetchAll(ctx context.Context, p Provider, tickers []string, start, end time.Time, withDividends bool) (map[string]TickerSeries, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([]TickerSeries, len(tickers))

	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			bars, err := p.GetPrices(gctx, ticker, start, end)
			if err != nil {
				return err
			}
			var divs []DividendEvent
			if withDividends {
				divs, err = p.GetDividends(gctx, ticker, start, end)
				if err != nil {
					return err
				}
			}
			results[i] = TickerSeries{Ticker: ticker, Bars: bars, Dividends: divs}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]TickerSeries, len(tickers))
	for _, r := range results {
		out[r.Ticker] = r
	}
	return out, nil
}
