// FILE: helpers.go
// Package backtest – pre-loop validation, date alignment, and the
// withdrawal-shortfall FIFO share-sale fallback.
package backtest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quantlab/synthdiv/ledger"
	"github.com/quantlab/synthdiv/priceprovider"
)

func validateWeights(allocations map[string]float64) error {
	if len(allocations) == 0 {
		return &ConfigError{Msg: "allocations must not be empty"}
	}
	var sum float64
	for ticker, w := range allocations {
		if w < 0 || w > 1 {
			return &ConfigError{Msg: fmt.Sprintf("weight for %s out of [0,1]: %v", ticker, w)}
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return &ConfigError{Msg: fmt.Sprintf("weights sum to %v, want 1.0", sum)}
	}
	return nil
}

func nonCashTickers(allocations map[string]float64) []string {
	var out []string
	for ticker := range allocations {
		if ticker != cashTicker {
			out = append(out, ticker)
		}
	}
	sort.Strings(out)
	return out
}

// commonDates computes the intersection of trading dates across every
// ticker's bars, restricted to [start, end] (§3.2 Date alignment, §4.4
// pre-loop step 3). Dates are compared at day resolution.
func commonDates(series map[string]priceprovider.TickerSeries, tickers []string, start, end time.Time) ([]time.Time, error) {
	if len(tickers) == 0 {
		return nil, &ConfigError{Msg: "no non-CASH tickers to align dates against"}
	}

	counts := map[time.Time]int{}
	for _, ticker := range tickers {
		ts, ok := series[ticker]
		if !ok {
			return nil, &DataError{Msg: fmt.Sprintf("no price series fetched for %s", ticker)}
		}
		if len(ts.Bars) == 0 {
			return nil, &DataError{Msg: fmt.Sprintf("empty price series for %s", ticker)}
		}
		seen := map[time.Time]bool{}
		for _, bar := range ts.Bars {
			d := dayOnly(bar.Date)
			if d.Before(dayOnly(start)) || d.After(dayOnly(end)) {
				continue
			}
			if !seen[d] {
				seen[d] = true
				counts[d]++
			}
		}
	}

	var out []time.Time
	for d, c := range counts {
		if c == len(tickers) {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, &DataError{Msg: "empty intersection of trading dates across tickers"}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func dayOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func barIndex(bars []priceprovider.OHLCBar) map[time.Time]priceprovider.OHLCBar {
	idx := make(map[time.Time]priceprovider.OHLCBar, len(bars))
	for _, b := range bars {
		idx[dayOnly(b.Date)] = b
	}
	return idx
}

// isWithdrawalDay reports whether d falls on the withdrawal schedule:
// every withdrawalFrequencyDays starting at start (§4.4 step 3).
func isWithdrawalDay(d, start time.Time, withdrawalFrequencyDays int) bool {
	if withdrawalFrequencyDays <= 0 {
		return false
	}
	elapsed := int(dayOnly(d).Sub(dayOnly(start)).Hours() / 24)
	return elapsed >= 0 && elapsed%withdrawalFrequencyDays == 0
}

// cpiRatio returns cpi(d)/cpi(start) from a sparse monthly CPI series,
// using the most recent index on or before each date; 1.0 if the series
// is empty or has no entry at or before start.
func cpiRatio(series []CPIPoint, start, d time.Time) float64 {
	if len(series) == 0 {
		return 1.0
	}
	atStart := cpiAt(series, start)
	atD := cpiAt(series, d)
	if atStart == 0 {
		return 1.0
	}
	return atD / atStart
}

func cpiAt(series []CPIPoint, d time.Time) float64 {
	var best float64
	var bestDate time.Time
	found := false
	for _, p := range series {
		if !p.Date.After(d) && (!found || p.Date.After(bestDate)) {
			best = p.Index
			bestDate = p.Date
			found = true
		}
	}
	return best
}

// coverWithdrawalShortfall sells shares FIFO across tickers, proportional
// to their allocation weight, until shortfall is covered or no shares
// remain (§4.4 step 3). Returns the total proceeds raised; the caller
// compares that against shortfall to detect depletion.
func coverWithdrawalShortfall(
	portfolio *ledger.Portfolio,
	tickers []string,
	allocations map[string]float64,
	pricesToday map[string]float64,
	shortfall float64,
	date time.Time,
) (float64, error) {
	nonCashWeight := 0.0
	for _, t := range tickers {
		nonCashWeight += allocations[t]
	}
	if nonCashWeight <= 0 {
		return 0, nil
	}

	var proceeds float64
	for _, ticker := range tickers {
		if proceeds >= shortfall {
			break
		}
		price, ok := pricesToday[ticker]
		if !ok || price <= 0 {
			continue
		}
		holding := portfolio.Holding(ticker)
		share := shortfall * (allocations[ticker] / nonCashWeight)
		qty := int64(math.Ceil(share / price))
		if qty <= 0 {
			continue
		}
		held := holding.SharesHeld()
		if qty > held {
			qty = held
		}
		if qty <= 0 {
			continue
		}
		amount := float64(qty) * price
		if _, err := holding.RecordSell(date, qty, price, amount, "withdrawal shortfall liquidation"); err != nil {
			return proceeds, err
		}
		proceeds += amount
	}
	// Whatever a capped ticker could not cover is taken from the tickers
	// that still hold shares, in the same order.
	for _, ticker := range tickers {
		price := pricesToday[ticker]
		holding := portfolio.Holding(ticker)
		held := holding.SharesHeld()
		if proceeds >= shortfall || price <= 0 || held == 0 {
			continue
		}
		qty := min(int64(math.Ceil((shortfall-proceeds)/price)), held)
		amount := float64(qty) * price
		if _, err := holding.RecordSell(date, qty, price, amount, "withdrawal shortfall liquidation"); err != nil {
			return proceeds, err
		}
		proceeds += amount
	}
	return proceeds, nil
}
