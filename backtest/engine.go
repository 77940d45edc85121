// FILE: engine.go
// Package backtest – the simulation engine (§4.4): the daily loop driving
// dispatch to the portfolio algorithm, margin policy, cash-interest,
// dividend crediting, withdrawal policy, and daily snapshotting.
package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quantlab/synthdiv/ledger"
	"github.com/quantlab/synthdiv/priceprovider"
	"github.com/quantlab/synthdiv/tradealgo"
)

// Run executes one deterministic portfolio backtest (§6
// run_portfolio_backtest) and returns the full chronological transaction
// log plus the result Summary.
func Run(ctx context.Context, opts Options) ([]ledger.Transaction, Summary, error) {
	opts = opts.withDefaults()

	if err := validateWeights(opts.Allocations); err != nil {
		return nil, Summary{}, err
	}
	if pa := opts.Spec.PerAsset; opts.Spec.Mode == tradealgo.PerAssetMode && pa.Variant != tradealgo.BuyAndHold {
		if pa.RebalancePct <= 0 || pa.RebalancePct >= 1 {
			return nil, Summary{}, &ConfigError{Msg: fmt.Sprintf("rebalance_pct %v out of (0,1)", pa.RebalancePct)}
		}
	}
	if opts.Provider == nil {
		return nil, Summary{}, &ConfigError{Msg: "Provider must not be nil"}
	}

	tickers := nonCashTickers(opts.Allocations)

	series, err := priceprovider.FetchAll(ctx, opts.Provider, tickers, opts.StartDate, opts.EndDate, true)
	if err != nil {
		return nil, Summary{}, &DataError{Msg: err.Error()}
	}

	dates, err := commonDates(series, tickers, opts.StartDate, opts.EndDate)
	if err != nil {
		return nil, Summary{}, err
	}

	barsByTicker := make(map[string]map[time.Time]priceprovider.OHLCBar, len(tickers))
	for _, t := range tickers {
		barsByTicker[t] = barIndex(series[t].Bars)
	}

	var bilIndex map[time.Time]priceprovider.OHLCBar
	var bilDivByDate map[time.Time]priceprovider.DividendEvent
	if opts.Bil != nil {
		bilIndex = barIndex(opts.Bil.Bars)
		bilDivByDate = make(map[time.Time]priceprovider.DividendEvent, len(opts.Bil.Dividends))
		for _, ev := range opts.Bil.Dividends {
			bilDivByDate[dayOnly(ev.Date)] = ev
		}
	}

	// Dividend events come from two sources (§6 provider contract):
	// the Provider's own GetDividends results, fetched alongside prices
	// above, and any caller-supplied opts.DividendData. Both are merged
	// per ticker; an explicit opts.DividendData entry for a given date
	// overrides whatever the provider returned for that same date, since
	// the caller supplied it deliberately.
	dividendsByTickerDate := make(map[string]map[time.Time]priceprovider.DividendEvent, len(tickers))
	for _, t := range tickers {
		m := make(map[time.Time]priceprovider.DividendEvent, len(series[t].Dividends))
		for _, ev := range series[t].Dividends {
			m[dayOnly(ev.Date)] = ev
		}
		dividendsByTickerDate[t] = m
	}
	for ticker, events := range opts.DividendData {
		m, ok := dividendsByTickerDate[ticker]
		if !ok {
			m = make(map[time.Time]priceprovider.DividendEvent, len(events))
			dividendsByTickerDate[ticker] = m
		}
		for _, ev := range events {
			m[dayOnly(ev.Date)] = ev
		}
	}

	portfolio := ledger.NewPortfolio(opts.InitialInvestment)
	minBank, maxBank := opts.InitialInvestment, opts.InitialInvestment

	perAssetConfigs := make(map[string]tradealgo.Config, len(tickers))
	for _, t := range tickers {
		perAssetConfigs[t] = opts.Spec.PerAsset
	}
	pf := tradealgo.NewPortfolio(perAssetConfigs, opts.Allocations, opts.Spec.Rebal)
	useRebalance := opts.Spec.Mode == tradealgo.RebalanceMode

	firstDate := dates[0]
	for _, ticker := range tickers {
		bar0, ok := barsByTicker[ticker][firstDate]
		if !ok {
			return nil, Summary{}, &DataError{Msg: fmt.Sprintf("missing bar for %s on first common date", ticker)}
		}
		weight := opts.Allocations[ticker]
		targetValue := weight * opts.InitialInvestment
		qty := int64(math.Floor(targetValue / bar0.Close))
		holding := portfolio.Holding(ticker)
		cost := float64(qty) * bar0.Close
		holding.RecordBuy(firstDate, qty, bar0.Close, -cost, "initial allocation")
		portfolio.Bank -= cost
		pf.OnNewHoldings(ticker, qty, bar0.Close)
		opts.Recorder.IncTransaction(string(ledger.Buy))
	}

	var totalWithdrawn, totalDividends, totalInterest float64
	var skippedBuys int
	lastInterestDate := opts.StartDate

	for _, d := range dates {
		if err := ctx.Err(); err != nil {
			return sortedTransactions(portfolio), Summary{}, &DataError{Msg: "context canceled: " + err.Error()}
		}

		pricesToday := make(map[string]float64, len(tickers))
		barsToday := make(map[string]priceprovider.OHLCBar, len(tickers))
		for _, t := range tickers {
			bar, ok := barsByTicker[t][d]
			if !ok {
				return sortedTransactions(portfolio), Summary{}, &DataError{Msg: fmt.Sprintf("missing bar for %s on %s", t, d)}
			}
			barsToday[t] = bar
			pricesToday[t] = bar.Close
		}

		// Step 1: dividend crediting.
		for _, ticker := range tickers {
			events, ok := dividendsByTickerDate[ticker]
			if !ok {
				continue
			}
			ev, ok := events[d]
			if !ok {
				continue
			}
			holding := portfolio.Holding(ticker)
			shares := holding.SharesHeld()
			if shares == 0 {
				continue
			}
			amount := float64(shares) * ev.PerShareAmount
			holding.RecordCash(ledger.Dividend, d, amount, "dividend credit")
			portfolio.Bank += amount
			totalDividends += amount
			opts.Recorder.AddDividend(amount)
			opts.Recorder.IncTransaction(string(ledger.Dividend))
		}

		// Step 2: cash interest.
		if opts.CashInterestRatePct > 0 && dayOnly(d).Month() != dayOnly(lastInterestDate).Month() {
			days := dayOnly(d).Sub(dayOnly(lastInterestDate)).Hours() / 24
			amount := portfolio.Bank * (opts.CashInterestRatePct / 100) * (days / 365.25)
			if amount != 0 {
				portfolio.Holding(cashTicker).RecordCash(ledger.Interest, d, amount, "cash interest credit")
				portfolio.Bank += amount
				totalInterest += amount
				opts.Recorder.AddInterest(amount)
				opts.Recorder.IncTransaction(string(ledger.Interest))
			}
			lastInterestDate = d
		} else if opts.Bil != nil {
			if ev, ok := bilDivByDate[dayOnly(d)]; ok {
				if bar, ok := bilIndex[dayOnly(d)]; ok && bar.Close > 0 {
					equivalentShares := portfolio.Bank / bar.Close
					amount := equivalentShares * ev.PerShareAmount
					portfolio.Holding(cashTicker).RecordCash(ledger.Interest, d, amount, "BIL-equivalent interest credit")
					portfolio.Bank += amount
					totalInterest += amount
					opts.Recorder.AddInterest(amount)
					opts.Recorder.IncTransaction(string(ledger.Interest))
				}
			}
		}

		// Step 3: scheduled withdrawal.
		if opts.WithdrawalRatePct > 0 && isWithdrawalDay(d, opts.StartDate, opts.WithdrawalFrequencyDays) {
			monthly := opts.InitialInvestment * (opts.WithdrawalRatePct / 100) / 12
			amount := monthly * (float64(opts.WithdrawalFrequencyDays) / 30.0)
			amount *= cpiRatio(opts.CPISeries, opts.StartDate, d)

			portfolio.Bank -= amount
			if portfolio.Bank < 0 && !opts.AllowMargin {
				shortfall := -portfolio.Bank
				proceeds, serr := coverWithdrawalShortfall(portfolio, tickers, opts.Allocations, pricesToday, shortfall, d)
				if serr != nil {
					return sortedTransactions(portfolio), Summary{}, serr
				}
				portfolio.Bank += proceeds
				if portfolio.Bank < -1e-6 {
					return sortedTransactions(portfolio), Summary{}, &DepletionError{
						Msg:     fmt.Sprintf("withdrawal of %.2f on %s exceeds total portfolio value", amount, d.Format("2006-01-02")),
						Partial: sortedTransactions(portfolio),
					}
				}
			}
			portfolio.Holding(cashTicker).RecordCash(ledger.Withdrawal, d, -amount, "scheduled withdrawal")
			totalWithdrawn += amount
			opts.Recorder.AddWithdrawn(amount)
			opts.Recorder.IncTransaction(string(ledger.Withdrawal))
		}

		// Step 4: algorithm dispatch.
		var orders []tradealgo.Order
		if useRebalance {
			if pf.DueForRebalance(d) {
				totalEquity := portfolio.Bank
				sharesHeld := make(map[string]int64, len(tickers))
				for _, t := range tickers {
					h := portfolio.Holding(t).SharesHeld()
					sharesHeld[t] = h
					totalEquity += float64(h) * pricesToday[t]
				}
				orders = pf.RebalanceOrders(d, pricesToday, sharesHeld, totalEquity)
			}
		} else {
			sharesHeld := make(map[string]int64, len(tickers))
			for _, t := range tickers {
				sharesHeld[t] = portfolio.Holding(t).SharesHeld()
			}
			orders, err = pf.OnDay(barsToday, sharesHeld)
			if err != nil {
				return sortedTransactions(portfolio), Summary{}, &ConfigError{Msg: err.Error()}
			}
		}

		// Step 5: execution.
		for _, order := range orders {
			holding := portfolio.Holding(order.Ticker)
			switch order.Action {
			case ledger.Buy:
				cost := float64(order.Quantity) * order.Price
				if opts.AllowMargin || portfolio.Bank >= cost {
					holding.RecordBuy(d, order.Quantity, order.Price, -cost, order.Note)
					portfolio.Bank -= cost
					opts.Recorder.IncTransaction(string(ledger.Buy))
				} else {
					if algo, ok := pf.Algos[order.Ticker]; ok {
						algo.RevertBuy()
					}
					holding.RecordCash(ledger.Buy, d, 0, "SKIPPED_BUY: insufficient cash")
					skippedBuys++
					opts.Recorder.IncSkippedBuy()
				}
			case ledger.Sell:
				proceeds := float64(order.Quantity) * order.Price
				if _, serr := holding.RecordSell(d, order.Quantity, order.Price, proceeds, order.Note); serr != nil {
					return sortedTransactions(portfolio), Summary{}, serr
				}
				portfolio.Bank += proceeds
				opts.Recorder.IncTransaction(string(ledger.Sell))
			}
		}

		// Step 6: snapshot.
		portfolio.Snapshot(d, pricesToday)
		if portfolio.Bank < minBank {
			minBank = portfolio.Bank
		}
		if portfolio.Bank > maxBank {
			maxBank = portfolio.Bank
		}
		opts.Recorder.SetEquity(portfolio.DailyValue[d])
		opts.Recorder.SetBank(portfolio.Bank)
	}

	lastDate := dates[len(dates)-1]
	finalValue := portfolio.DailyValue[lastDate]
	totalReturn := (finalValue - opts.InitialInvestment) / opts.InitialInvestment

	years := lastDate.Sub(firstDate).Hours() / 24 / 365.25
	annualizedReturn := totalReturn
	if years > 0 {
		annualizedReturn = math.Pow(1+totalReturn, 1/years) - 1
	}

	perTicker := make(map[string]PerTickerSummary, len(tickers))
	for _, ticker := range tickers {
		holding := portfolio.Holding(ticker)
		finalHoldings := holding.SharesHeld()
		price := closeOnDate(barsByTicker, ticker, lastDate)
		perTicker[ticker] = PerTickerSummary{
			FinalHoldings:    finalHoldings,
			FinalValue:       float64(finalHoldings) * price,
			RealizedPL:       holding.RealizedPL(),
			UnrealizedPL:     holding.UnrealizedPL(price),
			TransactionCount: len(holding.Transactions),
		}
	}

	summary := Summary{
		FinalValue:           finalValue,
		TotalReturn:          totalReturn,
		AnnualizedReturn:     annualizedReturn,
		PerTicker:            perTicker,
		FinalBank:            portfolio.Bank,
		MinBank:              minBank,
		MaxBank:              maxBank,
		TotalWithdrawn:       totalWithdrawn,
		TotalDividends:       totalDividends,
		TotalInterest:        totalInterest,
		SkippedBuys:          skippedBuys,
		DailyPortfolioValues: portfolio.DailyValue,
		DailyBankValues:      portfolio.DailyBank,
	}

	if !opts.SkipBaseline {
		baseline := opts.Baseline
		if baseline == nil {
			baseOpts := opts
			baseOpts.Spec = tradealgo.Spec{Mode: tradealgo.PerAssetMode, PerAsset: tradealgo.Config{Variant: tradealgo.BuyAndHold}}
			baseOpts.SkipBaseline = true
			baseOpts.Baseline = nil
			baseOpts.Recorder = nil
			_, baseSummary, berr := Run(ctx, baseOpts)
			if berr != nil {
				return sortedTransactions(portfolio), Summary{}, berr
			}
			baseline = &baseSummary
		}
		summary.VolatilityAlpha = totalReturn - baseline.TotalReturn
		if totalWithdrawn != 0 {
			summary.CoverageRatio = (totalDividends + totalInterest + summary.VolatilityAlpha*opts.InitialInvestment) / totalWithdrawn
		}
		summary.Baseline = baseline
	}

	return sortedTransactions(portfolio), summary, nil
}

func closeOnDate(barsByTicker map[string]map[time.Time]priceprovider.OHLCBar, ticker string, date time.Time) float64 {
	if bar, ok := barsByTicker[ticker][date]; ok {
		return bar.Close
	}
	return 0
}

// sortedTransactions returns every transaction across every holding,
// ordered chronologically (ties keep each ticker's internal append
// order), matching the single-list shape of the primary API (§6).
func sortedTransactions(portfolio *ledger.Portfolio) []ledger.Transaction {
	all := portfolio.AllTransactions()
	sort.SliceStable(all, func(i, j int) bool { return all[i].Date.Before(all[j].Date) })
	return all
}
