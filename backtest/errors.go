// FILE: errors.go
// Package backtest – the error taxonomy (§7). All are fail-fast; the
// engine reports a categorized error rather than a partial success.
package backtest

import (
	"github.com/quantlab/synthdiv/ledger"
)

// ConfigError reports an invalid parameter, caught before the daily loop
// begins (weights not summing to 1, non-positive rebalance_pct, etc.).
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "backtest: config error: " + e.Msg }

// DataError reports a provider or alignment failure: missing/inconsistent
// bars, a dividend date outside the fetched range, or an empty
// intersection of trading dates.
type DataError struct {
	Msg string
}

func (e *DataError) Error() string { return "backtest: data error: " + e.Msg }

// DepletionError reports a scheduled withdrawal that exceeds total
// portfolio value even after selling every share. The partial transaction
// log up to the point of failure is attached for diagnosis (§7).
type DepletionError struct {
	Msg     string
	Partial []ledger.Transaction
}

func (e *DepletionError) Error() string { return "backtest: portfolio depleted: " + e.Msg }

// OversellError re-exports ledger.OversellError's shape at the engine
// boundary: an algorithm requested a SELL quantity exceeding open lots.
// This always indicates an algorithm bug, never a user input problem.
type OversellError = ledger.OversellError
