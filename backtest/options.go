// FILE: options.go
// Package backtest – the primary API surface (§6): Options in, (transactions,
// Summary) out.
package backtest

import (
	"time"

	"github.com/quantlab/synthdiv/btmetrics"
	"github.com/quantlab/synthdiv/priceprovider"
	"github.com/quantlab/synthdiv/tradealgo"
)

const cashTicker = "CASH"

// BilSeries is an optional short-bill OHLC+dividend series used to model
// interest on the CASH allocation (§4.5) instead of a flat annualized
// rate.
type BilSeries struct {
	Bars      []priceprovider.OHLCBar
	Dividends []priceprovider.DividendEvent
}

// CPIPoint is one entry of an optional monthly inflation index used to
// inflate scheduled withdrawals (§4.4 step 3).
type CPIPoint struct {
	Date  time.Time
	Index float64
}

// Options is the full input set to Run (§6 run_portfolio_backtest).
type Options struct {
	Allocations map[string]float64 // ticker -> weight, sums to 1.0 within 1e-9; "CASH" reserved
	StartDate   time.Time
	EndDate     time.Time

	Spec tradealgo.Spec // parsed algorithm specifier (§6 grammar)

	InitialInvestment       float64 // default 1_000_000
	AllowMargin             bool    // default false
	WithdrawalRatePct       float64 // default 0
	WithdrawalFrequencyDays int     // default 30

	DividendData        map[string][]priceprovider.DividendEvent
	CashInterestRatePct float64
	Bil                 *BilSeries
	CPISeries           []CPIPoint

	Provider priceprovider.Provider

	// Recorder, if non-nil, receives Prometheus instrumentation for this
	// run. nil is safe: every Recorder method no-ops on a nil receiver.
	Recorder *btmetrics.Recorder

	// SkipBaseline, when true, suppresses the internal buy-and-hold rerun
	// used to compute VolatilityAlpha and CoverageRatio (§4.7, §9). Set
	// this when Run is itself computing the baseline, to avoid infinite
	// recursion, or when a caller doesn't need the metric and wants to
	// save the extra run.
	SkipBaseline bool

	// Baseline, when non-nil, is used directly instead of re-running the
	// buy-and-hold variant (§12 supplemented caching: a sweep over many
	// variants on the same allocation/date range/provider needs the
	// baseline computed only once).
	Baseline *Summary
}

func (o Options) withDefaults() Options {
	if o.InitialInvestment == 0 {
		o.InitialInvestment = 1_000_000
	}
	if o.WithdrawalFrequencyDays == 0 {
		o.WithdrawalFrequencyDays = 30
	}
	return o
}

// PerTickerSummary is one ticker's contribution to the final Summary
// (§4.7).
type PerTickerSummary struct {
	FinalHoldings    int64
	FinalValue       float64
	RealizedPL       float64
	UnrealizedPL     float64
	TransactionCount int
}

// Summary is the engine's result record (§4.7).
type Summary struct {
	FinalValue       float64
	TotalReturn      float64
	AnnualizedReturn float64

	PerTicker map[string]PerTickerSummary

	FinalBank float64
	MinBank   float64
	MaxBank   float64

	TotalWithdrawn float64
	TotalDividends float64
	TotalInterest  float64

	SkippedBuys int

	VolatilityAlpha float64
	CoverageRatio   float64

	DailyPortfolioValues map[time.Time]float64
	DailyBankValues      map[time.Time]float64

	// Baseline holds the buy-and-hold comparison run's own Summary, so a
	// caller sweeping many variants over the same inputs can reuse it
	// instead of paying for another full engine pass (§12).
	Baseline *Summary
}

// AdjustedReturns is the result of the AdjustReturns overlay (§10.4):
// RealTotalReturn and AlphaVsMarket.
type AdjustedReturns struct {
	RealTotalReturn float64
	AlphaVsMarket   float64
}
