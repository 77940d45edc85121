// FILE: portfolio.go
// Package tradealgo – the portfolio-level algorithm (§4.3): a per-asset
// composite that runs one PerAssetAlgo per ticker against a shared bank,
// plus optional periodic rebalancing back to target weights.
package tradealgo

import (
	"math"
	"sort"
	"time"

	"github.com/quantlab/synthdiv/bracket"
	"github.com/quantlab/synthdiv/ledger"
	"github.com/quantlab/synthdiv/priceprovider"
)

// minRebalanceNotional is the §4.3 "below a $100 absolute threshold no
// trade is emitted" floor, checked against the dollar value of the
// computed trade, not just its share count.
const minRebalanceNotional = 100.0

// Portfolio composes one PerAssetAlgo per ticker. It owns no cash or
// shares itself (§4.3); the engine applies the Orders it returns against
// the shared bank and per-ticker ledger holdings.
type Portfolio struct {
	Algos   map[string]*PerAssetAlgo
	Weights map[string]float64 // target weight per ticker, used only by rebalancing
	Rebal   RebalancePeriod

	lastPeriodKey string
}

// NewPortfolio builds one PerAssetAlgo per ticker from specs, sharing the
// rebalance cadence and target weights across the whole portfolio.
func NewPortfolio(specs map[string]Config, weights map[string]float64, rebal RebalancePeriod) *Portfolio {
	algos := make(map[string]*PerAssetAlgo, len(specs))
	for ticker, cfg := range specs {
		algos[ticker] = NewPerAssetAlgo(ticker, cfg)
	}
	return &Portfolio{Algos: algos, Weights: weights, Rebal: rebal}
}

// OnNewHoldings forwards initial-position setup to one ticker's algorithm.
func (pf *Portfolio) OnNewHoldings(ticker string, qty int64, firstPrice float64) {
	if a, ok := pf.Algos[ticker]; ok {
		a.OnNewHoldings(qty, firstPrice)
	}
}

// OnDay runs every ticker's per-asset algorithm for the given day's bars
// and returns the union of their orders. Tickers are iterated in sorted
// order so output is deterministic across runs (§5).
func (pf *Portfolio) OnDay(bars map[string]priceprovider.OHLCBar, sharesHeld map[string]int64) ([]Order, error) {
	tickers := make([]string, 0, len(pf.Algos))
	for t := range pf.Algos {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	var all []Order
	for _, t := range tickers {
		bar, ok := bars[t]
		if !ok {
			continue
		}
		orders, err := pf.Algos[t].OnDay(bar, sharesHeld[t])
		if err != nil {
			return nil, err
		}
		all = append(all, orders...)
	}
	return all, nil
}

// periodKey returns a coarsened date string identifying the rebalance
// period a date falls in, so DueForRebalance can detect a period boundary
// by plain string inequality.
func periodKey(date time.Time, period RebalancePeriod) string {
	switch period {
	case MonthlyRebalance:
		return date.Format("2006-01")
	case QuarterlyRebalance:
		q := (int(date.Month())-1)/3 + 1
		return date.Format("2006") + "-Q" + string(rune('0'+q))
	case AnnualRebalance:
		return date.Format("2006")
	default:
		return ""
	}
}

// DueForRebalance reports whether date starts a new rebalance period
// relative to the last call to RebalanceOrders, and is always false when
// Rebal is NoRebalance.
func (pf *Portfolio) DueForRebalance(date time.Time) bool {
	if pf.Rebal == NoRebalance {
		return false
	}
	key := periodKey(date, pf.Rebal)
	return key != pf.lastPeriodKey
}

// RebalanceOrders computes the trades needed to bring every ticker back to
// its target weight of totalEquity at the given prices, and marks date's
// period as done. Quantities are rounded with the pinned banker's-rounding
// rule (§5); a ticker whose trade notional falls below
// minRebalanceNotional produces no order (§4.3).
func (pf *Portfolio) RebalanceOrders(date time.Time, prices map[string]float64, sharesHeld map[string]int64, totalEquity float64) []Order {
	pf.lastPeriodKey = periodKey(date, pf.Rebal)

	tickers := make([]string, 0, len(pf.Weights))
	for t := range pf.Weights {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	var orders []Order
	for _, t := range tickers {
		price, ok := prices[t]
		if !ok || price <= 0 {
			continue
		}
		targetValue := totalEquity * pf.Weights[t]
		targetQty := bracket.RoundHalfEven(targetValue / price)
		diff := targetQty - sharesHeld[t]
		if diff == 0 || math.Abs(float64(diff)*price) < minRebalanceNotional {
			continue
		}
		if diff > 0 {
			orders = append(orders, Order{Ticker: t, Action: ledger.Buy, Quantity: diff, Price: price, Note: "rebalance"})
		} else {
			orders = append(orders, Order{Ticker: t, Action: ledger.Sell, Quantity: -diff, Price: price, Note: "rebalance"})
		}
	}
	return orders
}
