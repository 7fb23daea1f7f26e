package model

// Explain builds the read-only audit record for a derived regime.
func Explain(r Regime, snap Snapshot, p Params) Explanation {
	return Explanation{
		BTCDominancePct: round(snap.BTCDominancePct, 3),
		DefiTVLUSD:      round(snap.DefiTVLUSD, 2),
		DEXShare:        round(DEXShare(snap.CEXVolume24hBTC, snap.DEXVolume24hBTC), 4),
		PegWorstDevBps:  round((1-r.PegStability)*p.MaxPegDev*10000, 2),
		Regime: Regime{
			RiskOff:         round(r.RiskOff, 3),
			OnchainActivity: round(r.OnchainActivity, 3),
			PegStability:    round(r.PegStability, 3),
		},
	}
}
