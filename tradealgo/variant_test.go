package tradealgo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quantlab/synthdiv/ledger"
	"github.com/quantlab/synthdiv/priceprovider"
	"github.com/quantlab/synthdiv/tradealgo"
)

func bar(date string, o, h, l, c float64) priceprovider.OHLCBar {
	d, _ := time.Parse("2006-01-02", date)
	return priceprovider.OHLCBar{Date: d, Open: o, High: h, Low: l, Close: c}
}

func TestBuyAndHold_NeverTradesAfterActivation(t *testing.T) {
	a := tradealgo.NewPerAssetAlgo("VOO", tradealgo.Config{Variant: tradealgo.BuyAndHold})
	a.OnNewHoldings(100, 100)
	orders, err := a.OnDay(bar("2024-01-02", 200, 250, 190, 240), 100)
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestSD_BuyThenSellAtATH(t *testing.T) {
	a := tradealgo.NewPerAssetAlgo("VOO", tradealgo.Config{Variant: tradealgo.SD, RebalancePct: 0.1, ProfitSharing: 0.5})
	a.OnNewHoldings(100, 100)

	// Drop through the buy trigger (100/1.1 ~= 90.9).
	orders, err := a.OnDay(bar("2024-01-02", 95, 96, 89, 92), 100)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, ledger.Buy, orders[0].Action)
	require.Equal(t, 1, a.BuybackDepth())

	// Rally above last buy's sell trigger and set a new ATH.
	orders, err = a.OnDay(bar("2024-01-03", 95, 150, 94, 140), 101)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, ledger.Sell, orders[0].Action)
	require.Equal(t, 0, a.BuybackDepth())
}

func TestSDAthOnly_NeverBuys(t *testing.T) {
	a := tradealgo.NewPerAssetAlgo("VOO", tradealgo.Config{Variant: tradealgo.SDAthOnly, RebalancePct: 0.1, ProfitSharing: 0.5})
	a.OnNewHoldings(100, 100)
	orders, err := a.OnDay(bar("2024-01-02", 95, 96, 50, 92), 100)
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestSDAthSell_SuppressesSellUntilNewATH(t *testing.T) {
	a := tradealgo.NewPerAssetAlgo("VOO", tradealgo.Config{Variant: tradealgo.SDAthSell, RebalancePct: 0.1, ProfitSharing: 0.5})
	a.OnNewHoldings(100, 100)

	orders, err := a.OnDay(bar("2024-01-02", 95, 96, 89, 92), 100)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, ledger.Buy, orders[0].Action)

	// Rally but stay under the prior ATH of 100: no unwind yet.
	orders, err = a.OnDay(bar("2024-01-03", 93, 99, 92, 98), 101)
	require.NoError(t, err)
	require.Empty(t, orders)
	require.Equal(t, 1, a.BuybackDepth())

	// New ATH: unwind fires.
	orders, err = a.OnDay(bar("2024-01-04", 99, 120, 98, 110), 101)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, ledger.Sell, orders[0].Action)
	require.Equal(t, 0, a.BuybackDepth())
}

func TestParseSpec_BuyAndHold(t *testing.T) {
	spec, err := tradealgo.ParseSpec("buy-and-hold")
	require.NoError(t, err)
	require.Equal(t, tradealgo.BuyAndHold, spec.PerAsset.Variant)
	require.Equal(t, tradealgo.NoRebalance, spec.Rebal)
}

func TestParseSpec_SDWithDefaults(t *testing.T) {
	spec, err := tradealgo.ParseSpec("sd-9.05")
	require.NoError(t, err)
	require.Equal(t, tradealgo.PerAssetMode, spec.Mode)
	require.Equal(t, tradealgo.SD, spec.PerAsset.Variant)
	require.InDelta(t, 0.0905, spec.PerAsset.RebalancePct, 1e-9)
	require.InDelta(t, 0.5, spec.PerAsset.ProfitSharing, 1e-9)
	require.Equal(t, 0.0, spec.PerAsset.Seed)
}

func TestParseSpec_AthOnlyWithSeed(t *testing.T) {
	spec, err := tradealgo.ParseSpec("sd-ath-only-8,75,100")
	require.NoError(t, err)
	require.Equal(t, tradealgo.SDAthOnly, spec.PerAsset.Variant)
	require.InDelta(t, 0.08, spec.PerAsset.RebalancePct, 1e-9)
	require.InDelta(t, 0.75, spec.PerAsset.ProfitSharing, 1e-9)
	require.InDelta(t, 100.0, spec.PerAsset.Seed, 1e-9)
}

func TestParseSpec_SDN(t *testing.T) {
	spec, err := tradealgo.ParseSpec("sd8")
	require.NoError(t, err)
	require.Equal(t, tradealgo.SD, spec.PerAsset.Variant)
	require.InDelta(t, 0.0905, spec.PerAsset.RebalancePct, 1e-3)
	require.InDelta(t, 0.5, spec.PerAsset.ProfitSharing, 1e-9)
}

func TestParseSpec_PerAssetPrefix(t *testing.T) {
	spec, err := tradealgo.ParseSpec("per-asset:sd-ath-sell-10,100")
	require.NoError(t, err)
	require.Equal(t, tradealgo.PerAssetMode, spec.Mode)
	require.Equal(t, tradealgo.SDAthSell, spec.PerAsset.Variant)
	require.InDelta(t, 0.10, spec.PerAsset.RebalancePct, 1e-9)
	require.InDelta(t, 1.0, spec.PerAsset.ProfitSharing, 1e-9)
}

func TestParseSpec_RebalanceStandalone(t *testing.T) {
	spec, err := tradealgo.ParseSpec("quarterly-rebalance")
	require.NoError(t, err)
	require.Equal(t, tradealgo.RebalanceMode, spec.Mode)
	require.Equal(t, tradealgo.QuarterlyRebalance, spec.Rebal)
}

func TestParseSpec_Unrecognized(t *testing.T) {
	_, err := tradealgo.ParseSpec("not-a-real-algo")
	require.Error(t, err)
}

func TestPortfolio_RebalanceOrders(t *testing.T) {
	pf := tradealgo.NewPortfolio(
		map[string]tradealgo.Config{"VOO": {Variant: tradealgo.BuyAndHold}, "BND": {Variant: tradealgo.BuyAndHold}},
		map[string]float64{"VOO": 0.6, "BND": 0.4},
		tradealgo.QuarterlyRebalance,
	)
	date := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	require.True(t, pf.DueForRebalance(date))

	orders := pf.RebalanceOrders(date,
		map[string]float64{"VOO": 100, "BND": 50},
		map[string]int64{"VOO": 100, "BND": 100}, // $10,000 + $5,000 = $15,000 total
		15000)
	// Target VOO = 0.6*15000/100 = 90 shares (currently 100 -> sell 10).
	// Target BND = 0.4*15000/50 = 120 shares (currently 100 -> buy 20).
	require.Len(t, orders, 2)
	for _, o := range orders {
		switch o.Ticker {
		case "VOO":
			require.Equal(t, ledger.Sell, o.Action)
			require.Equal(t, int64(10), o.Quantity)
		case "BND":
			require.Equal(t, ledger.Buy, o.Action)
			require.Equal(t, int64(20), o.Quantity)
		}
	}

	require.False(t, pf.DueForRebalance(date))
}

func TestPortfolio_RebalanceOrders_SkipsBelowNotionalThreshold(t *testing.T) {
	pf := tradealgo.NewPortfolio(
		map[string]tradealgo.Config{"VOO": {Variant: tradealgo.BuyAndHold}, "BND": {Variant: tradealgo.BuyAndHold}},
		map[string]float64{"VOO": 0.6, "BND": 0.4},
		tradealgo.QuarterlyRebalance,
	)
	date := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	// Target VOO = 0.6*15000/10 = 900 shares (currently 899 -> diff 1 share
	// at $10 = $10 notional, below the $100 floor: no order).
	// Target BND = 0.4*15000/50 = 120 shares (currently 100 -> buy 20
	// shares at $50 = $1,000 notional: still emitted).
	orders := pf.RebalanceOrders(date,
		map[string]float64{"VOO": 10, "BND": 50},
		map[string]int64{"VOO": 899, "BND": 100},
		15000)

	require.Len(t, orders, 1)
	require.Equal(t, "BND", orders[0].Ticker)
	require.Equal(t, ledger.Buy, orders[0].Action)
	require.Equal(t, int64(20), orders[0].Quantity)
}
