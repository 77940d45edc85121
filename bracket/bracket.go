// FILE: bracket.go
// Package bracket – the synthetic-dividend bracket ladder.
//
// A pure function from (last transaction price, rebalance pct, optional
// seed) to the next buy/sell trigger prices and order sizes. The ladder is
// a geometric sequence with step r = rebalance_pct; an optional seed price
// snaps any reference price to the nearest ladder node so two independently
// started positions on the same ticker land on the same grid.
package bracket

import (
	"fmt"
	"math"
)

// Quote is the next buy/sell trigger prices and quantities derived from the
// ladder at a given reference price.
type Quote struct {
	BuyPrice  float64
	SellPrice float64
	BuyQty    int64
	SellQty   int64
}

// ConfigError marks a fatal, non-retryable ladder misconfiguration (§4.1).
type ConfigError struct {
	Field string
	Value float64
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("bracket: invalid %s=%v", e.Field, e.Value)
}

// Next computes the next-buy and next-sell price/quantity pair.
//
// holdings is the current share count (H in §4.1), price is the last
// transaction price (P), rebalancePct is r, profitSharing is p, and seed is
// the optional bracket_seed (0 means "no seed, use price as base").
func Next(holdings int64, price, rebalancePct, profitSharing, seed float64) (Quote, error) {
	if rebalancePct <= 0 || rebalancePct >= 1 {
		return Quote{}, &ConfigError{Field: "rebalance_pct", Value: rebalancePct}
	}
	if holdings < 0 {
		return Quote{}, &ConfigError{Field: "holdings", Value: float64(holdings)}
	}
	if price <= 0 {
		return Quote{}, &ConfigError{Field: "price", Value: price}
	}

	p := price
	if seed > 0 {
		p = SnapToNode(price, seed, rebalancePct)
	}

	buyPrice := p / (1 + rebalancePct)
	sellPrice := p * (1 + rebalancePct)

	h := float64(holdings)
	buyQty := RoundHalfEven(rebalancePct * h * profitSharing)
	sellQty := RoundHalfEven(rebalancePct * h * profitSharing / (1 + rebalancePct))

	return Quote{
		BuyPrice:  buyPrice,
		SellPrice: sellPrice,
		BuyQty:    buyQty,
		SellQty:   sellQty,
	}, nil
}

// SnapToNode snaps price to the nearest ladder node base*(1+r)^k.
func SnapToNode(price, base, r float64) float64 {
	k := math.Round(math.Log(price/base) / math.Log(1+r))
	return base * math.Pow(1+r, k)
}

// Node returns base*(1+r)^k for an arbitrary (possibly negative) step k.
func Node(base, r float64, k int) float64 {
	return base * math.Pow(1+r, float64(k))
}

// RoundHalfEven implements the §5 "round_half_to_even" rule (banker's
// rounding) for quantity computations, returned as an integer share count.
func RoundHalfEven(x float64) int64 {
	if x < 0 {
		return -RoundHalfEven(-x)
	}
	floor := math.Floor(x)
	frac := x - floor
	switch {
	case frac < 0.5:
		return int64(floor)
	case frac > 0.5:
		return int64(floor) + 1
	default:
		// exactly .5: round to even
		if int64(floor)%2 == 0 {
			return int64(floor)
		}
		return int64(floor) + 1
	}
}
