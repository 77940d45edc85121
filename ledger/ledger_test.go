package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quantlab/synthdiv/ledger"
)

func d(day int) time.Time { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }

func TestFIFOClosure(t *testing.T) {
	h := ledger.NewHolding("VOO")
	h.RecordBuy(d(1), 10, 100, -1000, "initial")
	h.RecordBuy(d(2), 5, 110, -550, "add")

	require.Equal(t, int64(15), h.SharesHeld())

	_, err := h.RecordSell(d(3), 12, 120, 1440, "sell")
	require.NoError(t, err)
	require.Equal(t, int64(3), h.SharesHeld())

	// FIFO: first lot (10@100) fully closed, second lot (5@110) partially
	// closed by 2.
	wantPL := (120.0-100.0)*10 + (120.0-110.0)*2
	require.InDelta(t, wantPL, h.RealizedPL(), 1e-9)
}

func TestOversell(t *testing.T) {
	h := ledger.NewHolding("VOO")
	h.RecordBuy(d(1), 5, 100, -500, "initial")
	_, err := h.RecordSell(d(2), 10, 110, 1100, "oversell")
	require.Error(t, err)
	var oe *ledger.OversellError
	require.ErrorAs(t, err, &oe)
}

func TestCostBasis(t *testing.T) {
	h := ledger.NewHolding("VOO")
	h.RecordBuy(d(1), 10, 100, -1000, "a")
	h.RecordBuy(d(2), 10, 120, -1200, "b")
	require.InDelta(t, 110.0, h.CostBasis(), 1e-9)
}

func TestPortfolioSnapshot(t *testing.T) {
	p := ledger.NewPortfolio(1000)
	h := p.Holding("VOO")
	h.RecordBuy(d(1), 5, 100, -500, "init")
	p.Bank -= 500
	p.Snapshot(d(1), map[string]float64{"VOO": 100})
	require.InDelta(t, 1000, p.DailyValue[d(1)], 1e-9)
	require.InDelta(t, 500, p.DailyBank[d(1)], 1e-9)
}
