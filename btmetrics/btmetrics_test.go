package btmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/synthdiv/btmetrics"
)

func TestRecorder_RecordsValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := btmetrics.NewRecorder(reg, "test-run")
	require.NoError(t, err)

	r.SetEquity(10500.25)
	r.SetBank(1200)
	r.IncTransaction("BUY")
	r.IncTransaction("BUY")
	r.IncSkippedBuy()
	r.AddWithdrawn(400)
	r.AddDividend(12.5)
	r.AddInterest(3.1)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, fam := range families {
		if fam.GetName() == "backtest_equity_usd" {
			found = true
			require.InDelta(t, 10500.25, fam.Metric[0].GetGauge().GetValue(), 1e-9)
		}
	}
	require.True(t, found, "expected backtest_equity_usd to be registered")
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *btmetrics.Recorder
	require.NotPanics(t, func() {
		r.SetEquity(1)
		r.SetBank(1)
		r.IncTransaction("SELL")
		r.IncSkippedBuy()
		r.AddWithdrawn(1)
		r.AddDividend(1)
		r.AddInterest(1)
	})
}
