// FILE: parser.go
// Package tradealgo – the algorithm-specifier grammar (§6).
//
// A small split-based recursive-descent parser, grounded on the teacher's
// flat env-var parsing style in env.go (plain strings.Split/strconv, no
// parser-combinator library): specifiers are short and line-oriented, so a
// hand-rolled splitter matches the corpus's texture better than pulling in
// a grammar library none of the examples use.
package tradealgo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Mode distinguishes the two kinds of portfolio algorithm (§4.3).
type Mode int

const (
	// PerAssetMode runs one PerAssetAlgo per ticker against a shared bank.
	PerAssetMode Mode = iota
	// RebalanceMode periodically trades every ticker back to its target
	// weight; it carries no per-asset algorithm of its own.
	RebalanceMode
)

// RebalancePeriod names the portfolio-level rebalance cadence (§4.3).
type RebalancePeriod int

const (
	NoRebalance RebalancePeriod = iota
	MonthlyRebalance
	QuarterlyRebalance
	AnnualRebalance
)

func (r RebalancePeriod) String() string {
	switch r {
	case MonthlyRebalance:
		return "monthly-rebalance"
	case QuarterlyRebalance:
		return "quarterly-rebalance"
	case AnnualRebalance:
		return "annual-rebalance"
	default:
		return "none"
	}
}

// Spec is a fully parsed algorithm specifier (§6).
type Spec struct {
	Mode     Mode
	PerAsset Config          // meaningful when Mode == PerAssetMode
	Rebal    RebalancePeriod // meaningful when Mode == RebalanceMode
}

// ParseSpec parses one algorithm specifier string (§6 grammar):
//
//	buy-and-hold
//	sd-<r_pct>,<p_pct>[,<seed>]          e.g. "sd-9.05,50" -> r=0.0905, p=0.50
//	sd-ath-only-<r_pct>,<p_pct>[,<seed>]
//	sd-ath-sell-<r_pct>,<p_pct>[,<seed>]
//	sdN                                  N a positive integer, r = 2^(1/N)-1
//	per-asset:<algo>                     explicit per-asset composite wrapper
//	quarterly-rebalance | monthly-rebalance | annual-rebalance
//
// r_pct and p_pct are given as percentages (divided by 100 here); the
// resulting Config stores the fractional form used throughout the engine.
// p defaults to 0.5 (50%) when omitted.
func ParseSpec(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Spec{}, fmt.Errorf("tradealgo: empty algorithm specifier")
	}

	switch s {
	case "monthly-rebalance":
		return Spec{Mode: RebalanceMode, Rebal: MonthlyRebalance}, nil
	case "quarterly-rebalance":
		return Spec{Mode: RebalanceMode, Rebal: QuarterlyRebalance}, nil
	case "annual-rebalance":
		return Spec{Mode: RebalanceMode, Rebal: AnnualRebalance}, nil
	}

	if rest, ok := strings.CutPrefix(s, "per-asset:"); ok {
		cfg, err := parsePerAsset(rest)
		if err != nil {
			return Spec{}, err
		}
		return Spec{Mode: PerAssetMode, PerAsset: cfg}, nil
	}

	cfg, err := parsePerAsset(s)
	if err != nil {
		return Spec{}, err
	}
	return Spec{Mode: PerAssetMode, PerAsset: cfg}, nil
}

func parsePerAsset(s string) (Config, error) {
	switch {
	case s == "buy-and-hold":
		return Config{Variant: BuyAndHold}, nil
	case strings.HasPrefix(s, "sd-ath-only-"):
		return parseSDParams(SDAthOnly, strings.TrimPrefix(s, "sd-ath-only-"))
	case strings.HasPrefix(s, "sd-ath-sell-"):
		return parseSDParams(SDAthSell, strings.TrimPrefix(s, "sd-ath-sell-"))
	case strings.HasPrefix(s, "sd-"):
		return parseSDParams(SD, strings.TrimPrefix(s, "sd-"))
	case isSDN(s):
		return parseSDN(s)
	default:
		return Config{}, fmt.Errorf("tradealgo: unrecognized algorithm specifier %q", s)
	}
}

// isSDN reports whether s matches "sd" followed by one or more digits
// (e.g. "sd8", "sd16"), distinct from the "sd-..." parameterized form.
func isSDN(s string) bool {
	if !strings.HasPrefix(s, "sd") || strings.HasPrefix(s, "sd-") {
		return false
	}
	digits := strings.TrimPrefix(s, "sd")
	if digits == "" {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// parseSDN parses "sdN" (e.g. "sd8") into r = 2^(1/N) - 1, p = 0.5 default.
func parseSDN(s string) (Config, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(s, "sd"))
	if err != nil || n <= 0 {
		return Config{}, fmt.Errorf("tradealgo: bad sdN specifier %q", s)
	}
	r := math.Pow(2, 1.0/float64(n)) - 1
	return Config{Variant: SD, RebalancePct: r, ProfitSharing: 0.5}, nil
}

// parseSDParams parses the "<r_pct>,<p_pct>[,<seed>]" tail shared by all
// three parameterized sd variants; r_pct and p_pct are percentages.
func parseSDParams(v Variant, tail string) (Config, error) {
	parts := strings.Split(tail, ",")
	if len(parts) < 1 || len(parts) > 3 {
		return Config{}, fmt.Errorf("tradealgo: bad sd parameter list %q", tail)
	}

	rPct, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Config{}, fmt.Errorf("tradealgo: bad rebalance percent %q: %w", parts[0], err)
	}

	p := 0.5
	if len(parts) >= 2 && strings.TrimSpace(parts[1]) != "" {
		pPct, perr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if perr != nil {
			return Config{}, fmt.Errorf("tradealgo: bad profit-sharing %q: %w", parts[1], perr)
		}
		p = pPct / 100.0
	}

	seed := 0.0
	if len(parts) == 3 && strings.TrimSpace(parts[2]) != "" {
		seed, err = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return Config{}, fmt.Errorf("tradealgo: bad bracket seed %q: %w", parts[2], err)
		}
	}

	return Config{Variant: v, RebalancePct: rPct / 100.0, ProfitSharing: p, Seed: seed}, nil
}
