// FILE: variant.go
// Package tradealgo – per-asset algorithm variants (§4.2); the
// portfolio-level algorithm (§4.3) is in portfolio.go.
//
// Re-architected per Design Notes §9 as a tagged variant rather than a deep
// class hierarchy: one Variant enum, one PerAssetAlgo type whose behavior
// branches on the tag inside OnDay. State is small and disjoint per
// variant, so a single struct holds the union of all variants' state
// without needing separate types.
package tradealgo

import (
	"fmt"
	"math"

	"github.com/quantlab/synthdiv/bracket"
	"github.com/quantlab/synthdiv/ledger"
	"github.com/quantlab/synthdiv/priceprovider"
)

// Variant tags which of the four behavioral algorithms a PerAssetAlgo runs.
type Variant int

const (
	BuyAndHold Variant = iota
	SD
	SDAthOnly
	SDAthSell
)

func (v Variant) String() string {
	switch v {
	case BuyAndHold:
		return "buy-and-hold"
	case SD:
		return "sd"
	case SDAthOnly:
		return "sd-ath-only"
	case SDAthSell:
		return "sd-ath-sell"
	default:
		return "unknown"
	}
}

// Config is the algorithm configuration (§3.1): stored exactly as given, no
// runtime reparsing.
type Config struct {
	Variant       Variant
	RebalancePct  float64 // r
	ProfitSharing float64 // p, in [0, 1.25], default 0.5
	Seed          float64 // bracket_seed; 0 means "none"
}

// Order is what a per-asset or portfolio algorithm hands back to the
// engine: a value-typed trade intent. Algorithms own no cash and mutate no
// ledger state directly (Design Notes §9); the engine applies Orders
// against the shared bank and the ledger.
type Order struct {
	Ticker   string
	Action   ledger.Action // Buy or Sell
	Quantity int64
	Price    float64
	Note     string
}

// buybackLot is one BUY recorded on the buyback stack (§3.1) while a
// drawdown is in progress, awaiting unwind.
type buybackLot struct {
	qty   int64
	price float64
	depth int
}

// PerAssetAlgo is the per-ticker trading state machine (§4.2). It consumes
// one daily OHLC bar and the current share count and emits zero or more
// Orders; it never touches the bank.
type PerAssetAlgo struct {
	Ticker string
	Cfg    Config

	lastTxPrice float64
	athPrice    float64
	buyback     []buybackLot
	activated   bool
	initialBuyDone bool

	// preBuyPrice remembers last_transaction_price from just before the
	// most recent BUY this instance emitted, so the engine can call
	// RevertBuy when a margin check turns that BUY into a SkippedBuy
	// (§3.2: "the algorithm's last_transaction_price is not updated on a
	// skip" — that decision belongs to the engine, not the algorithm, so
	// OnDay optimistically applies it and the engine unwinds it on skip).
	preBuyPrice float64
}

// NewPerAssetAlgo constructs an uninitialized algorithm instance for
// ticker. Call OnNewHoldings once the engine has placed the initial
// position before the first OnDay call.
func NewPerAssetAlgo(ticker string, cfg Config) *PerAssetAlgo {
	return &PerAssetAlgo{Ticker: ticker, Cfg: cfg}
}

// OnNewHoldings initializes per-asset state once the engine has placed the
// initial BUY during pre-loop setup (§4.4 step 7): ath_price and
// last_transaction_price both start at the first traded price.
func (a *PerAssetAlgo) OnNewHoldings(qty int64, firstPrice float64) {
	a.lastTxPrice = firstPrice
	a.athPrice = firstPrice
	a.activated = true
	a.initialBuyDone = true
}

// LastTransactionPrice exposes the ladder's current reference price
// (read-only; used by tests and by rebalance strategies inspecting state).
func (a *PerAssetAlgo) LastTransactionPrice() float64 { return a.lastTxPrice }

// ATHPrice exposes the highest close ever observed.
func (a *PerAssetAlgo) ATHPrice() float64 { return a.athPrice }

// BuybackDepth reports how many buyback lots are currently open.
func (a *PerAssetAlgo) BuybackDepth() int { return len(a.buyback) }

// RevertBuy undoes the state effects of the most recent BUY this instance
// emitted: pops the buyback lot just pushed and restores
// last_transaction_price to its pre-buy value. The engine calls this when
// a margin check turns that BUY into a SkippedBuy.
func (a *PerAssetAlgo) RevertBuy() {
	if len(a.buyback) > 0 {
		a.buyback = a.buyback[:len(a.buyback)-1]
	}
	a.lastTxPrice = a.preBuyPrice
}

// OnDay consumes one bar and the current share count, returning the orders
// this variant produces (§4.2). sharesHeld is the share count before any
// of this day's orders are applied.
func (a *PerAssetAlgo) OnDay(bar priceprovider.OHLCBar, sharesHeld int64) ([]Order, error) {
	if !a.activated {
		return nil, fmt.Errorf("tradealgo: OnDay called before OnNewHoldings for %s", a.Ticker)
	}

	switch a.Cfg.Variant {
	case BuyAndHold:
		// The single BUY is placed by the engine during pre-loop setup
		// (§4.4 step 5); buy-and-hold never trades again.
		return nil, nil
	case SD:
		return a.onDaySD(bar, sharesHeld)
	case SDAthOnly:
		return a.onDayAthOnly(bar, sharesHeld)
	case SDAthSell:
		return a.onDayAthSell(bar, sharesHeld)
	default:
		return nil, fmt.Errorf("tradealgo: unknown variant %v", a.Cfg.Variant)
	}
}

// quote computes the current ladder trigger prices/quantities from state.
func (a *PerAssetAlgo) quote(sharesHeld int64) (bracket.Quote, error) {
	return bracket.Next(sharesHeld, a.lastTxPrice, a.Cfg.RebalancePct, a.Cfg.ProfitSharing, a.Cfg.Seed)
}

// gapOrder decides, when both a buy trigger and a sell trigger fire within
// the same bar, which executes first (§4.2): BUY-then-SELL when the bar
// gaps through buyPrice before sellPrice on the way from open to close
// (open < buyPrice < sellPrice < close); otherwise the trigger closer to
// the bar's open fires first, matching the direction of the gap.
func gapOrder(bar priceprovider.OHLCBar, buyPrice, sellPrice float64) (buyFirst bool) {
	if bar.Open < buyPrice && buyPrice < sellPrice && sellPrice < bar.Close {
		return true
	}
	// Gap direction: whichever trigger the open is nearer to fires first.
	return math.Abs(buyPrice-bar.Open) < math.Abs(sellPrice-bar.Open)
}

// primarySellQty adds the profit-sharing de-risking addendum (§4.2) to the
// ladder's base sell quantity when p > 1.0.
func primarySellQty(baseSellQty int64, sharesHeld int64, r, p float64) int64 {
	if p <= 1.0 {
		return baseSellQty
	}
	extra := bracket.RoundHalfEven((p - 1.0) * float64(sharesHeld) * r)
	return baseSellQty + extra
}

func (a *PerAssetAlgo) onDaySD(bar priceprovider.OHLCBar, sharesHeld int64) ([]Order, error) {
	q, err := a.quote(sharesHeld)
	if err != nil {
		return nil, err
	}

	sellFires := q.SellQty > 0 && bar.High >= q.SellPrice && bar.High > a.athPrice
	buyFires := q.BuyQty > 0 && bar.Low <= q.BuyPrice

	var orders []Order
	doBuy := func() {
		orders = append(orders, Order{Ticker: a.Ticker, Action: ledger.Buy, Quantity: q.BuyQty, Price: q.BuyPrice, Note: a.buyNote()})
		a.preBuyPrice = a.lastTxPrice
		a.buyback = append(a.buyback, buybackLot{qty: q.BuyQty, price: q.BuyPrice, depth: len(a.buyback) + 1})
		a.lastTxPrice = q.BuyPrice
	}
	doSell := func() {
		qty := primarySellQty(q.SellQty, sharesHeld, a.Cfg.RebalancePct, a.Cfg.ProfitSharing)
		note := "primary sell (ATH)"
		if len(a.buyback) > 0 {
			top := a.buyback[len(a.buyback)-1]
			note = fmt.Sprintf("secondary sell: unwind buyback #%d", top.depth)
			a.buyback = a.buyback[:len(a.buyback)-1]
		}
		orders = append(orders, Order{Ticker: a.Ticker, Action: ledger.Sell, Quantity: qty, Price: q.SellPrice, Note: note})
		if bar.Close > a.athPrice {
			a.athPrice = bar.Close
		}
		a.lastTxPrice = q.SellPrice
	}

	switch {
	case buyFires && sellFires:
		if gapOrder(bar, q.BuyPrice, q.SellPrice) {
			doBuy()
			doSell()
		} else {
			doSell()
			doBuy()
		}
	case buyFires:
		doBuy()
	case sellFires:
		doSell()
	}

	return orders, nil
}

func (a *PerAssetAlgo) buyNote() string {
	return fmt.Sprintf("buyback at bracket depth %d", len(a.buyback)+1)
}

func (a *PerAssetAlgo) onDayAthOnly(bar priceprovider.OHLCBar, sharesHeld int64) ([]Order, error) {
	q, err := a.quote(sharesHeld)
	if err != nil {
		return nil, err
	}
	if q.SellQty == 0 || bar.High < q.SellPrice || bar.High <= a.athPrice {
		if bar.Close > a.athPrice {
			a.athPrice = bar.Close
		}
		return nil, nil
	}
	qty := primarySellQty(q.SellQty, sharesHeld, a.Cfg.RebalancePct, a.Cfg.ProfitSharing)
	order := Order{Ticker: a.Ticker, Action: ledger.Sell, Quantity: qty, Price: q.SellPrice, Note: "primary sell (ATH, ath-only variant)"}
	if bar.Close > a.athPrice {
		a.athPrice = bar.Close
	}
	a.lastTxPrice = q.SellPrice
	return []Order{order}, nil
}

func (a *PerAssetAlgo) onDayAthSell(bar priceprovider.OHLCBar, sharesHeld int64) ([]Order, error) {
	q, err := a.quote(sharesHeld)
	if err != nil {
		return nil, err
	}

	var orders []Order
	buyFires := q.BuyQty > 0 && bar.Low <= q.BuyPrice
	newATH := bar.Close > a.athPrice

	doBuy := func() {
		orders = append(orders, Order{Ticker: a.Ticker, Action: ledger.Buy, Quantity: q.BuyQty, Price: q.BuyPrice, Note: a.buyNote()})
		a.preBuyPrice = a.lastTxPrice
		a.buyback = append(a.buyback, buybackLot{qty: q.BuyQty, price: q.BuyPrice, depth: len(a.buyback) + 1})
		a.lastTxPrice = q.BuyPrice
	}

	unwindAll := func() {
		for len(a.buyback) > 0 {
			top := a.buyback[len(a.buyback)-1]
			a.buyback = a.buyback[:len(a.buyback)-1]
			price := q.SellPrice
			if bar.High < price {
				price = bar.Close
			}
			orders = append(orders, Order{
				Ticker:   a.Ticker,
				Action:   ledger.Sell,
				Quantity: top.qty,
				Price:    price,
				Note:     fmt.Sprintf("ATH-sell unwind of buyback #%d", top.depth),
			})
			a.lastTxPrice = price
		}
	}

	if buyFires && newATH {
		if gapOrder(bar, q.BuyPrice, q.SellPrice) {
			doBuy()
			unwindAll()
		} else {
			unwindAll()
			doBuy()
		}
	} else if buyFires {
		doBuy()
	} else if newATH && len(a.buyback) > 0 {
		unwindAll()
	}

	if bar.Close > a.athPrice {
		a.athPrice = bar.Close
	}
	return orders, nil
}
