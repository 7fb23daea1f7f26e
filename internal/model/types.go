package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrSchema marks a snapshot that is missing a required field or carries a malformed one.
var ErrSchema = errors.New("snapshot schema")

// PegQuote is one tracked stablecoin and its signed deviation string, e.g. "-0.0120%".
type PegQuote struct {
	Symbol    string
	Deviation string
}

// Snapshot is one immutable observation of the market metrics the scorer consumes.
type Snapshot struct {
	BTCDominancePct float64
	DefiTVLUSD      float64
	CEXVolume24hBTC float64
	DEXVolume24hBTC float64
	Stablecoins     []PegQuote
	// Timestamp is passed through untouched.
	Timestamp string
}

func (s Snapshot) Validate() error {
	fields := []struct {
		name     string
		value    float64
		positive bool
	}{
		{"btc_dominance.value", s.BTCDominancePct, false},
		{"defi_tvl.value", s.DefiTVLUSD, true},
		{"volumes.cex_24h_btc", s.CEXVolume24hBTC, true},
		{"volumes.dex_24h_btc", s.DEXVolume24hBTC, true},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s is not finite: %w", f.name, ErrSchema)
		}
		if f.positive && f.value < 0 {
			return fmt.Errorf("%s is negative: %w", f.name, ErrSchema)
		}
	}
	if len(s.Stablecoins) == 0 {
		return fmt.Errorf("stablecoins missing: %w", ErrSchema)
	}
	return nil
}

// Regime summarizes market conditions; every field lies in [0, 1].
type Regime struct {
	RiskOff         float64 `json:"risk_off"`
	OnchainActivity float64 `json:"onchain_activity"`
	PegStability    float64 `json:"peg_stability"`
}

// Scores are the two competing protocol scores. They are compared only by difference.
type Scores struct {
	Conservative float64 `json:"conservative"`
	Activity     float64 `json:"activity"`
}

type Suggestion string

const (
	SuggestionConservative Suggestion = "CONSERVATIVE"
	SuggestionActivity     Suggestion = "ACTIVITY"
	SuggestionTie          Suggestion = "TIE"
)

// Recommendation is the presentation form of a decision; numeric fields are rounded to 3 places.
type Recommendation struct {
	Suggestion Suggestion `json:"suggestion"`
	Confidence float64    `json:"confidence"`
	Scores     Scores     `json:"scores"`
}

// Explanation is the audit trail of a decision.
type Explanation struct {
	BTCDominancePct float64 `json:"btc_dominance_pct"`
	DefiTVLUSD      float64 `json:"defi_tvl_usd"`
	DEXShare        float64 `json:"dex_share"`
	PegWorstDevBps  float64 `json:"peg_worst_dev_bps"`
	Regime          Regime  `json:"regime"`
}

// Result bundles every stage of one evaluation.
type Result struct {
	Regime         Regime
	Scores         Scores
	Recommendation Recommendation
	Explanation    Explanation
}
