// FILE: ledger.go
// Package ledger – the FIFO lot-tracking data model (§3, §4.6).
//
// Transaction is the atomic, append-only unit of state mutation. Every BUY
// opens a Lot; every SELL closes open lots oldest-first. Holding derives
// share counts, realized/unrealized P/L, and cost basis on demand by
// replaying the lots, never by mutating transactions in place (Design
// Notes §9: lot closures are stored in a separate append-only structure
// keyed by lot id, not as in-place transaction mutation).
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of cash/share movement a Transaction represents.
type Action string

const (
	Buy        Action = "BUY"
	Sell       Action = "SELL"
	Dividend   Action = "DIVIDEND"
	Interest   Action = "INTEREST"
	Withdrawal Action = "WITHDRAWAL"
)

// Transaction is the atomic unit of state mutation (§3.1).
type Transaction struct {
	ID       string
	Ticker   string
	Action   Action
	Date     time.Time
	Quantity int64   // strictly positive for BUY/SELL, zero for cash-only actions and SKIPPED_BUY markers
	Price    float64 // per-share price for BUY/SELL
	Amount   float64 // signed cash delta: negative for BUY/WITHDRAWAL, positive for SELL/DIVIDEND/INTEREST
	Note     string

	// LotID is set on BUY transactions; it indexes into Holding.lots.
	LotID string
}

// Closure is a FIFO lot-closure record (§4.6), appended to the lot that was
// partially or fully closed by a later SELL.
type Closure struct {
	ClosedQty  int64
	CloseDate  time.Time
	ClosePrice float64
}

// Lot is an open BUY lot, tracked separately from its originating
// Transaction so the transaction itself is never mutated after its date
// passes (§8 property 1).
type Lot struct {
	ID           string
	Ticker       string
	OpenDate     time.Time
	OpenPrice    float64
	Quantity     int64 // original quantity bought
	RemainingQty int64
	Closes       []Closure
}

// OversellError indicates a SELL requested more shares than are held open
// (§7, an algorithm bug — fatal).
type OversellError struct {
	Ticker      string
	Requested   int64
	Unavailable int64
}

func (e *OversellError) Error() string {
	return fmt.Sprintf("ledger: oversell on %s: requested %d, only %d open", e.Ticker, e.Requested, e.Requested-e.Unavailable)
}

// Holding is the per-ticker append-only transaction and lot history.
type Holding struct {
	Ticker       string
	Transactions []Transaction
	lots         []*Lot // open and closed lots, in open order (oldest first)
}

// NewHolding creates an empty holding for ticker.
func NewHolding(ticker string) *Holding {
	return &Holding{Ticker: ticker}
}

// RecordBuy appends a BUY transaction and opens a new lot for it.
func (h *Holding) RecordBuy(date time.Time, qty int64, price float64, amount float64, note string) Transaction {
	lotID := uuid.New().String()
	lot := &Lot{
		ID:           lotID,
		Ticker:       h.Ticker,
		OpenDate:     date,
		OpenPrice:    price,
		Quantity:     qty,
		RemainingQty: qty,
	}
	h.lots = append(h.lots, lot)
	tx := Transaction{
		ID:       uuid.New().String(),
		Ticker:   h.Ticker,
		Action:   Buy,
		Date:     date,
		Quantity: qty,
		Price:    price,
		Amount:   amount,
		Note:     note,
		LotID:    lotID,
	}
	h.Transactions = append(h.Transactions, tx)
	return tx
}

// RecordSell closes qty shares FIFO across open lots and appends a SELL
// transaction. Returns OversellError if open lots cannot cover qty (§4.6
// step 3).
func (h *Holding) RecordSell(date time.Time, qty int64, price float64, amount float64, note string) (Transaction, error) {
	remaining := qty
	for _, lot := range h.lots {
		if remaining == 0 {
			break
		}
		if lot.RemainingQty == 0 {
			continue
		}
		closeQty := lot.RemainingQty
		if remaining < closeQty {
			closeQty = remaining
		}
		lot.Closes = append(lot.Closes, Closure{
			ClosedQty:  closeQty,
			CloseDate:  date,
			ClosePrice: price,
		})
		lot.RemainingQty -= closeQty
		remaining -= closeQty
	}
	if remaining > 0 {
		return Transaction{}, &OversellError{Ticker: h.Ticker, Requested: qty, Unavailable: remaining}
	}
	tx := Transaction{
		ID:       uuid.New().String(),
		Ticker:   h.Ticker,
		Action:   Sell,
		Date:     date,
		Quantity: qty,
		Price:    price,
		Amount:   amount,
		Note:     note,
	}
	h.Transactions = append(h.Transactions, tx)
	return tx, nil
}

// RecordCash appends a zero-quantity cash-movement transaction
// (DIVIDEND/INTEREST/WITHDRAWAL or a SKIPPED_BUY note-only marker).
func (h *Holding) RecordCash(action Action, date time.Time, amount float64, note string) Transaction {
	tx := Transaction{
		ID:     uuid.New().String(),
		Ticker: h.Ticker,
		Action: action,
		Date:   date,
		Amount: amount,
		Note:   note,
	}
	h.Transactions = append(h.Transactions, tx)
	return tx
}

// SharesHeld returns the current open share count: sum of remaining
// quantity across all lots (§3.1 Holding.current share count).
func (h *Holding) SharesHeld() int64 {
	var n int64
	for _, lot := range h.lots {
		n += lot.RemainingQty
	}
	return n
}

// RealizedPL sums (close_price - open_price) * closed_qty over every closed
// lot portion (§3.1, §8 property 7).
func (h *Holding) RealizedPL() float64 {
	var pl float64
	for _, lot := range h.lots {
		for _, c := range lot.Closes {
			pl += (c.ClosePrice - lot.OpenPrice) * float64(c.ClosedQty)
		}
	}
	return pl
}

// UnrealizedPL sums (currentPrice - open_price) * remaining_qty over open
// lots.
func (h *Holding) UnrealizedPL(currentPrice float64) float64 {
	var pl float64
	for _, lot := range h.lots {
		if lot.RemainingQty == 0 {
			continue
		}
		pl += (currentPrice - lot.OpenPrice) * float64(lot.RemainingQty)
	}
	return pl
}

// CostBasis returns the weighted-average open price across open lots, or 0
// if no shares are held.
func (h *Holding) CostBasis() float64 {
	var qty, cost float64
	for _, lot := range h.lots {
		if lot.RemainingQty == 0 {
			continue
		}
		qty += float64(lot.RemainingQty)
		cost += float64(lot.RemainingQty) * lot.OpenPrice
	}
	if qty == 0 {
		return 0
	}
	return cost / qty
}

// Lots returns the full (open and closed) lot history for the holding, in
// open order.
func (h *Holding) Lots() []*Lot {
	out := make([]*Lot, len(h.lots))
	copy(out, h.lots)
	return out
}

// Portfolio is the top-level aggregate: per-ticker holdings plus the single
// shared cash bank (§3.1 Portfolio, §4.4 Single shared bank invariant).
type Portfolio struct {
	Holdings map[string]*Holding
	Bank     float64

	DailyValue map[time.Time]float64
	DailyBank  map[time.Time]float64
}

// NewPortfolio creates an empty portfolio seeded with the given bank.
func NewPortfolio(initialBank float64) *Portfolio {
	return &Portfolio{
		Holdings:   make(map[string]*Holding),
		Bank:       initialBank,
		DailyValue: make(map[time.Time]float64),
		DailyBank:  make(map[time.Time]float64),
	}
}

// Holding returns (creating if necessary) the holding for ticker.
func (p *Portfolio) Holding(ticker string) *Holding {
	h, ok := p.Holdings[ticker]
	if !ok {
		h = NewHolding(ticker)
		p.Holdings[ticker] = h
	}
	return h
}

// AllTransactions returns every transaction across every ticker, in
// insertion order per ticker (callers needing a single chronological feed
// should sort by Date; ties preserve per-ticker insertion order).
func (p *Portfolio) AllTransactions() []Transaction {
	var out []Transaction
	for _, h := range p.Holdings {
		out = append(out, h.Transactions...)
	}
	return out
}

// Snapshot records the portfolio value and bank balance for date (§4.4
// step 6, taken after all same-day transactions have applied).
func (p *Portfolio) Snapshot(date time.Time, closePrices map[string]float64) {
	total := p.Bank
	for ticker, h := range p.Holdings {
		if ticker == "CASH" {
			continue
		}
		total += float64(h.SharesHeld()) * closePrices[ticker]
	}
	p.DailyValue[date] = total
	p.DailyBank[date] = p.Bank
}
