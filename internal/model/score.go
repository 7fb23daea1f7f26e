package model

// Score combines the regime into the two protocol scores.
//
// Both scores share the peg term, so an unstable peg penalizes them equally.
// Risk-off and on-chain activity pull in opposite directions, and each score
// also collects WeightInverse times the complement of the other side's signal.
func Score(r Regime, p Params) Scores {
	activity := p.WeightActivity*r.OnchainActivity +
		p.WeightPeg*r.PegStability +
		p.WeightInverse*(1-r.RiskOff)
	conservative := p.WeightRiskOff*r.RiskOff +
		p.WeightPeg*r.PegStability +
		p.WeightInverse*(1-r.OnchainActivity) +
		p.SafetyBias
	return Scores{Conservative: conservative, Activity: activity}
}
