package model

import (
	"errors"
	"math"
)

// Params holds the tunable bounds, weights and thresholds of the scorer.
// It is passed by value and never mutated during an evaluation.
type Params struct {
	// BTC dominance bounds in percent.
	BTCDomLow  float64 `yaml:"btc_dom_low" json:"btc_dom_low"`
	BTCDomHigh float64 `yaml:"btc_dom_high" json:"btc_dom_high"`

	// DeFi TVL health bounds in USD.
	TVLMin float64 `yaml:"tvl_min" json:"tvl_min"`
	TVLMax float64 `yaml:"tvl_max" json:"tvl_max"`

	// DEX share bounds as a fraction of total spot volume.
	DEXShareMin float64 `yaml:"dex_share_min" json:"dex_share_min"`
	DEXShareMax float64 `yaml:"dex_share_max" json:"dex_share_max"`

	// MaxPegDev is the fractional peg deviation at which stability reaches zero.
	MaxPegDev float64 `yaml:"max_peg_dev" json:"max_peg_dev"`

	WeightActivity float64 `yaml:"w_activity" json:"w_activity"`
	WeightPeg      float64 `yaml:"w_peg" json:"w_peg"`
	WeightRiskOff  float64 `yaml:"w_risk_off" json:"w_risk_off"`
	WeightInverse  float64 `yaml:"w_inverse" json:"w_inverse"`

	// SafetyBias is added to the conservative score unconditionally.
	SafetyBias float64 `yaml:"safety_bias" json:"safety_bias"`

	// Margin is the minimum absolute score gap for a non-tie suggestion.
	Margin float64 `yaml:"margin" json:"margin"`
}

func DefaultParams() Params {
	return Params{
		BTCDomLow:      40,
		BTCDomHigh:     60,
		TVLMin:         80e9,
		TVLMax:         250e9,
		DEXShareMin:    0.02,
		DEXShareMax:    0.20,
		MaxPegDev:      0.005,
		WeightActivity: 0.45,
		WeightPeg:      0.35,
		WeightRiskOff:  0.45,
		WeightInverse:  0.20,
		SafetyBias:     0.05,
		Margin:         0.08,
	}
}

func (p Params) Validate() error {
	for _, v := range []float64{
		p.BTCDomLow, p.BTCDomHigh, p.TVLMin, p.TVLMax, p.DEXShareMin, p.DEXShareMax, p.MaxPegDev,
		p.WeightActivity, p.WeightPeg, p.WeightRiskOff, p.WeightInverse, p.SafetyBias, p.Margin,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("model parameters must be finite")
		}
	}
	if p.BTCDomLow > p.BTCDomHigh {
		return errors.New("model.btc_dom_low must be <= model.btc_dom_high")
	}
	if p.TVLMin > p.TVLMax {
		return errors.New("model.tvl_min must be <= model.tvl_max")
	}
	if p.DEXShareMin > p.DEXShareMax {
		return errors.New("model.dex_share_min must be <= model.dex_share_max")
	}
	if p.MaxPegDev <= 0 {
		return errors.New("model.max_peg_dev must be > 0")
	}
	if p.Margin <= 0 {
		return errors.New("model.margin must be > 0")
	}
	return nil
}
