package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Structural blend of the on-chain activity factor. Not tunable.
const (
	tvlBlendWeight = 0.6
	dexBlendWeight = 0.4
)

// DeriveRegime turns a snapshot into the three bounded regime factors.
func DeriveRegime(snap Snapshot, p Params) (Regime, error) {
	if err := snap.Validate(); err != nil {
		return Regime{}, err
	}
	worst, err := WorstDeviation(snap.Stablecoins)
	if err != nil {
		return Regime{}, err
	}

	riskOff := NormLinear(snap.BTCDominancePct, p.BTCDomLow, p.BTCDomHigh)

	tvlHealth := NormLinear(snap.DefiTVLUSD, p.TVLMin, p.TVLMax)
	dexHealth := NormLinear(DEXShare(snap.CEXVolume24hBTC, snap.DEXVolume24hBTC), p.DEXShareMin, p.DEXShareMax)
	activity := Clamp(tvlBlendWeight*tvlHealth+dexBlendWeight*dexHealth, 0, 1)

	return Regime{
		RiskOff:         riskOff,
		OnchainActivity: activity,
		PegStability:    PegStability(worst, p.MaxPegDev),
	}, nil
}

// DEXShare is dex / (cex + dex), or 0 when there is no volume at all.
func DEXShare(cex, dex float64) float64 {
	total := cex + dex
	if total <= 0 {
		return 0
	}
	return dex / total
}

// PegStability is 1 at zero deviation and floors at 0 once the deviation reaches maxDev.
func PegStability(worstDev, maxDev float64) float64 {
	if maxDev <= 0 {
		if worstDev > 0 {
			return 0
		}
		return 1
	}
	return 1 - Clamp(worstDev/maxDev, 0, 1)
}

// WorstDeviation returns the largest absolute fractional deviation across quotes.
func WorstDeviation(quotes []PegQuote) (float64, error) {
	if len(quotes) == 0 {
		return 0, fmt.Errorf("no stablecoin quotes: %w", ErrSchema)
	}
	worst := 0.0
	for _, q := range quotes {
		dev, err := ParseDeviation(q.Deviation)
		if err != nil {
			return 0, fmt.Errorf("stablecoins.%s.deviation: %w", q.Symbol, err)
		}
		worst = math.Max(worst, dev)
	}
	return worst, nil
}

// ParseDeviation converts a signed percentage string such as "-0.12%" into an
// absolute fraction (0.0012). The trailing percent sign is required.
func ParseDeviation(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("deviation %q lacks %% suffix: %w", raw, ErrSchema)
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("deviation %q is not a number: %w", raw, ErrSchema)
	}
	return math.Abs(v) / 100, nil
}
